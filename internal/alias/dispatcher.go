package alias

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
)

// Table holds the provider settings of one environment. A role override
// replaces the environment default for instances carrying that role.
type Table struct {
	Default Settings            `yaml:"default" toml:"default"`
	Roles   map[string]Settings `yaml:"roles" toml:"roles" validate:"dive"`
}

// Resolve returns the settings for an instance with roles. The first role,
// in instance order, that has an override wins.
func (t Table) Resolve(roles []string) Settings {
	for _, role := range roles {
		if s, ok := t.Roles[role]; ok {
			return s
		}
	}
	return t.Default
}

// Dispatcher routes alias operations to the provider configured for each
// instance. Providers with identical settings are built once.
type Dispatcher struct {
	Environments map[string]Table
	Deps         Deps
	Metrics      *metrics.Metrics

	mu    sync.Mutex
	cache map[Settings]Provider
}

// Bind returns the provider for inst in env. An environment or role without a
// provider setting yields Nop.
func (d *Dispatcher) Bind(env string, roles []string, inst inventory.Instance) (Provider, Settings, error) {
	s := d.Environments[env].Resolve(roles)
	if s.Kind == "" || s.Kind == KindNone {
		return Nop{}, s, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.cache[s]; ok {
		return p, s, nil
	}
	p, err := New(s, d.Deps)
	if err != nil {
		return nil, s, fmt.Errorf("%s: %w", inst.Name, err)
	}
	if d.cache == nil {
		d.cache = make(map[Settings]Provider)
	}
	d.cache[s] = p
	return p, s, nil
}

// Update publishes the external address of inst.
func (d *Dispatcher) Update(ctx context.Context, env string, inst inventory.Instance) error {
	p, s, err := d.Bind(env, inst.Roles, inst)
	if err != nil {
		return err
	}
	if inst.ExternalIP == "" {
		d.Deps.logger().Warn("skipping dns alias, no external ip", "host", inst.Name)
		return nil
	}
	err = p.Update(ctx, inst.Name, inst.ExternalIP)
	d.record(s, "update", err)
	return err
}

// Destroy removes the alias of inst.
func (d *Dispatcher) Destroy(ctx context.Context, env string, inst inventory.Instance) error {
	p, s, err := d.Bind(env, inst.Roles, inst)
	if err != nil {
		return err
	}
	err = p.Destroy(ctx, inst.Name)
	d.record(s, "destroy", err)
	return err
}

func (d *Dispatcher) record(s Settings, op string, err error) {
	if s.Kind == "" || s.Kind == KindNone {
		return
	}
	d.Metrics.IncAliasRequest(string(s.Kind), op, err == nil)
}

// UpdateAll updates every instance. One failing instance does not stop the
// others; failures are returned together.
func (d *Dispatcher) UpdateAll(ctx context.Context, env string, instances []inventory.Instance) error {
	return d.each(instances, func(inst inventory.Instance) error { return d.Update(ctx, env, inst) })
}

// DestroyAll removes the alias of every instance.
func (d *Dispatcher) DestroyAll(ctx context.Context, env string, instances []inventory.Instance) error {
	return d.each(instances, func(inst inventory.Instance) error { return d.Destroy(ctx, env, inst) })
}

func (d *Dispatcher) each(instances []inventory.Instance, fn func(inventory.Instance) error) error {
	failures := &Failures{Failed: make(map[string]error)}
	for _, inst := range instances {
		if err := fn(inst); err != nil {
			d.Deps.logger().Error("dns alias failed", "host", inst.Name, "error", err)
			failures.Failed[inst.Name] = err
		}
	}
	if len(failures.Failed) > 0 {
		return failures
	}
	return nil
}

// Failures lists the instances whose alias operation failed.
type Failures struct {
	Failed map[string]error
}

func (e *Failures) Error() string {
	hosts := e.Hosts()
	parts := make([]string, 0, len(hosts))
	for _, h := range hosts {
		parts = append(parts, fmt.Sprintf("%s: %v", h, e.Failed[h]))
	}
	return fmt.Sprintf("%d alias(es) failed: %s", len(hosts), strings.Join(parts, "; "))
}

// Hosts returns the failed instance names in sorted order.
func (e *Failures) Hosts() []string {
	hosts := make([]string, 0, len(e.Failed))
	for h := range e.Failed {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
