// Package alias publishes instance names to a DNS provider.
package alias

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/melih-ucgun/fleetprov/internal/core"
)

// Provider creates or removes the DNS alias of one instance.
type Provider interface {
	Update(ctx context.Context, name, ip string) error
	Destroy(ctx context.Context, name string) error
}

// Kind names a provider implementation.
type Kind string

const (
	KindCloudflare Kind = "cloudflare"
	KindNsupdate   Kind = "nsupdate"
	KindNone       Kind = "none"
)

// Settings select and configure a provider. Settings is comparable so that
// identical settings share one provider.
type Settings struct {
	Kind    Kind          `yaml:"provider" toml:"provider" validate:"omitempty,oneof=cloudflare nsupdate none"`
	Zone    string        `yaml:"zone" toml:"zone"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
	Token   string        `yaml:"token" toml:"token"`
	Proxied bool          `yaml:"proxied" toml:"proxied"`
	Server  string        `yaml:"server" toml:"server"`
	KeyFile string        `yaml:"key_file" toml:"key_file"`
}

// Deps are the shared services handed to providers.
type Deps struct {
	// Transport runs provider tools such as nsupdate, normally locally.
	Transport core.Transport
	Logger    core.Logger
}

func (d Deps) logger() core.Logger {
	if d.Logger == nil {
		return core.NopLogger{}
	}
	return d.Logger
}

type constructor func(Settings, Deps) (Provider, error)

// providers is the closed set of supported kinds.
var providers = map[Kind]constructor{
	KindCloudflare: newCloudflare,
	KindNsupdate:   newNsupdate,
	KindNone:       func(Settings, Deps) (Provider, error) { return Nop{}, nil },
}

// New builds the provider for s. An empty kind yields Nop.
func New(s Settings, deps Deps) (Provider, error) {
	if s.Kind == "" {
		return Nop{}, nil
	}
	ctor, ok := providers[s.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown dns provider %q, expected one of %v", s.Kind, Kinds())
	}
	return ctor(s, deps)
}

// Kinds lists the supported provider kinds.
func Kinds() []Kind {
	return []Kind{KindCloudflare, KindNsupdate, KindNone}
}

// Nop accepts every call and does nothing.
type Nop struct{}

func (Nop) Update(context.Context, string, string) error { return nil }
func (Nop) Destroy(context.Context, string) error        { return nil }

// fqdn joins a host name with its zone.
func fqdn(name, zone string) string {
	zone = strings.Trim(zone, ".")
	if zone == "" || strings.HasSuffix(name, "."+zone) || name == zone {
		return name
	}
	return name + "." + zone
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}
	return ttl
}
