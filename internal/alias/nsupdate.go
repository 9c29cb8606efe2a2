package alias

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/libdns/libdns"
	"github.com/melih-ucgun/fleetprov/internal/core"
)

// Domain names DNS steps in errors.
const Domain = "dns"

// NsupdateProvider sends RFC 2136 dynamic updates with the nsupdate tool.
type NsupdateProvider struct {
	transport core.Transport
	server    string
	zone      string
	keyFile   string
	ttl       int
	logger    core.Logger
}

func newNsupdate(s Settings, deps Deps) (Provider, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("nsupdate provider needs a transport")
	}
	if s.Zone == "" {
		return nil, fmt.Errorf("nsupdate zone required")
	}
	return &NsupdateProvider{
		transport: deps.Transport,
		server:    s.Server,
		zone:      strings.Trim(s.Zone, "."),
		keyFile:   s.KeyFile,
		ttl:       int(ttlOrDefault(s.TTL).Seconds()),
		logger:    deps.logger(),
	}, nil
}

// script renders an nsupdate batch that replaces or removes the records of
// name.
func (p *NsupdateProvider) script(name string, add *libdns.RR) string {
	full := fqdn(name, p.zone) + "."
	var b strings.Builder
	if p.server != "" {
		fmt.Fprintf(&b, "server %s\n", p.server)
	}
	fmt.Fprintf(&b, "zone %s.\n", p.zone)
	if add != nil {
		fmt.Fprintf(&b, "update delete %s %s\n", full, add.Type)
		fmt.Fprintf(&b, "update add %s %d %s %s\n", full, p.ttl, add.Type, add.Data)
	} else {
		fmt.Fprintf(&b, "update delete %s A\n", full)
		fmt.Fprintf(&b, "update delete %s AAAA\n", full)
	}
	b.WriteString("send\n")
	return b.String()
}

func (p *NsupdateProvider) run(ctx context.Context, name, script string) error {
	cmd := core.NewCommand("nsupdate")
	if p.keyFile != "" {
		cmd.Args = []string{"-k", p.keyFile}
	}
	cmd.Stdin = script

	res, err := p.transport.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("run nsupdate: %w", err)
	}
	if !res.Success() {
		return &core.ActuationFailed{Domain: Domain, Items: []string{name}, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}

func (p *NsupdateProvider) Update(ctx context.Context, name, ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("parse ip %q: %w", ip, err)
	}
	rr := libdns.Address{Name: name, IP: addr}.RR()
	p.logger.Info("Updating DNS record", "zone", p.zone, "name", name, "type", rr.Type, "data", rr.Data)
	return p.run(ctx, name, p.script(name, &rr))
}

func (p *NsupdateProvider) Destroy(ctx context.Context, name string) error {
	p.logger.Info("Deleting DNS record", "zone", p.zone, "name", name)
	return p.run(ctx, name, p.script(name, nil))
}
