package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
)

// Actuation domains, as reported in core.ActuationFailed.
const (
	DomainPackages         = "packages"
	DomainLanguagePackages = "language-packages"
	DomainSources          = "package-sources"
)

// Phases of the language package actuation.
const (
	PhaseUnversioned = "unversioned"
	PhaseVersioned   = "versioned"
)

const aptEnv = "DEBIAN_FRONTEND=noninteractive"

// Actuator executes plans on one host. It must not be shared between hosts.
type Actuator struct {
	Transport core.Transport
	Logger    core.Logger
	Metrics   *metrics.Metrics
	// Sudo elevates every actuation command.
	Sudo bool
	// DryRun logs the commands instead of running them.
	DryRun bool
}

func (a *Actuator) logger() core.Logger {
	if a.Logger == nil {
		return core.NopLogger{}
	}
	return a.Logger
}

// run executes cmd and turns a non-zero exit into *core.ActuationFailed.
func (a *Actuator) run(ctx context.Context, domain, phase string, items []string, cmd core.Command) error {
	cmd.Sudo = cmd.Sudo || a.Sudo
	if a.DryRun {
		a.logger().Info("[DryRun] "+cmd.String(), "domain", domain)
		return nil
	}

	a.logger().Debug("running "+cmd.String(), "domain", domain, "phase", phase)
	res, err := a.Transport.Execute(ctx, cmd)
	if err != nil {
		a.Metrics.IncActuation(domain, phase, false)
		return fmt.Errorf("%s: run %s: %w", domain, cmd.Name, err)
	}
	if !res.Success() {
		a.Metrics.IncActuation(domain, phase, false)
		return &core.ActuationFailed{
			Domain:   domain,
			Phase:    phase,
			Items:    items,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}
	a.Metrics.IncActuation(domain, phase, true)
	return nil
}

// ApplyPackages refreshes the package index, then installs the planned list in
// one call or runs a full upgrade. There is no retry and no rollback.
func (a *Actuator) ApplyPackages(ctx context.Context, plan PackagePlan) (core.Result, error) {
	if plan.Empty() {
		return core.SuccessNoChange("All packages already installed"), nil
	}

	// A failed index refresh reports the items it was meant to serve.
	pending := []string{"dist-upgrade"}
	if !plan.Upgrade {
		pending = plan.Rendered()
	}
	update := core.Command{Name: "apt-get", Args: []string{"-q", "update"}}
	if err := a.run(ctx, DomainPackages, "index", pending, update); err != nil {
		return core.Result{}, err
	}

	if plan.Upgrade {
		cmd := core.Command{
			Name: "apt-get",
			Args: []string{"-q", "-y", "dist-upgrade"},
			Env:  []string{aptEnv},
		}
		if err := a.run(ctx, DomainPackages, "", []string{"dist-upgrade"}, cmd); err != nil {
			return core.Result{}, err
		}
		return core.SuccessChange("Upgraded all packages"), nil
	}

	items := plan.Rendered()
	cmd := core.Command{
		Name: "apt-get",
		Args: append([]string{"-q", "-y", "install"}, items...),
		Env:  []string{aptEnv},
	}
	if err := a.run(ctx, DomainPackages, "", items, cmd); err != nil {
		return core.Result{}, err
	}
	return core.SuccessChange(fmt.Sprintf("Installed %d package(s): %s", len(items), plan.Args()), items...), nil
}

// ApplyGems issues the unversioned and the versioned group as two independent
// calls: a failure of the first does not stop the second. Both calls answer
// interactive prompts through responder.
func (a *Actuator) ApplyGems(ctx context.Context, plan GemPlan, responder prompt.Responder) (core.Result, error) {
	if plan.Empty() {
		return core.SuccessNoChange("All gems already satisfied"), nil
	}

	base := []string{plan.Verb(), "--no-document"}
	var errs []error
	var done []string

	if len(plan.Unversioned) > 0 {
		cmd := core.Command{
			Name:      "gem",
			Args:      append(append([]string{}, base...), plan.Unversioned...),
			Responder: responder,
		}
		if err := a.run(ctx, DomainLanguagePackages, PhaseUnversioned, plan.Unversioned, cmd); err != nil {
			errs = append(errs, err)
		} else {
			done = append(done, plan.Unversioned...)
		}
	}

	if len(plan.Versioned) > 0 {
		args := plan.VersionedArgs()
		cmd := core.Command{
			Name:      "gem",
			Args:      append(append([]string{}, base...), args...),
			Responder: responder,
		}
		items := make([]string, len(plan.Versioned))
		for i, spec := range plan.Versioned {
			items[i] = spec.Name + ":" + spec.Version
		}
		if err := a.run(ctx, DomainLanguagePackages, PhaseVersioned, items, cmd); err != nil {
			errs = append(errs, err)
		} else {
			done = append(done, items...)
		}
	}

	if len(errs) > 0 {
		return core.Result{Changed: len(done) > 0, Items: done}, errors.Join(errs...)
	}
	return core.SuccessChange(fmt.Sprintf("gem %s %s", plan.Verb(), strings.Join(done, " ")), done...), nil
}

// ApplySources adds and removes one URI per call. Every URI is attempted; the
// failed ones are reported together in *SourceFailures.
func (a *Actuator) ApplySources(ctx context.Context, plan SourcePlan) (core.Result, error) {
	if plan.Empty() {
		return core.SuccessNoChange("Package sources already configured"), nil
	}

	failures := &SourceFailures{Failed: make(map[string]error)}
	var done []string

	apply := func(flag, phase string, uris []string) {
		for _, uri := range uris {
			cmd := core.Command{Name: "gem", Args: []string{"sources", flag, uri}}
			if err := a.run(ctx, DomainSources, phase, []string{uri}, cmd); err != nil {
				a.logger().Warn("source change failed", "uri", uri, "error", err)
				failures.Failed[uri] = err
				continue
			}
			done = append(done, flag+" "+uri)
		}
	}
	apply("-a", "add", plan.ToAdd)
	apply("-r", "remove", plan.ToRemove)

	res := core.Result{Changed: len(done) > 0, Message: fmt.Sprintf("%d source change(s)", len(done)), Items: done}
	if len(failures.Failed) > 0 {
		return res, failures
	}
	return res, nil
}
