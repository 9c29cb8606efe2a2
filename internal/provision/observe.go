package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/reconcile"
)

func query(ctx context.Context, tr core.Transport, domain string, cmd core.Command) (string, error) {
	res, err := tr.Execute(ctx, cmd)
	if err != nil {
		return "", &core.ObservationUnavailable{Domain: domain, Err: err}
	}
	if !res.Success() {
		return "", &core.ObservationUnavailable{
			Domain: domain,
			Err:    fmt.Errorf("%s exited with status %d: %s", cmd.Name, res.ExitCode, res.Output),
		}
	}
	return res.Output, nil
}

// ObservePackages lists installed OS packages with dpkg-query, skipping
// packages that are removed but not purged.
func ObservePackages(ctx context.Context, tr core.Transport) (reconcile.Installed, error) {
	out, err := query(ctx, tr, reconcile.DomainPackages, core.NewCommand("dpkg-query", "-W", "-f="+reconcile.DpkgQueryFormat))
	if err != nil {
		return nil, err
	}
	return reconcile.ParseDpkgQuery(out), nil
}

// ObserveGems lists installed gems and their versions.
func ObserveGems(ctx context.Context, tr core.Transport) (reconcile.Installed, error) {
	out, err := query(ctx, tr, reconcile.DomainLanguagePackages, core.NewCommand("gem", "list", "--local"))
	if err != nil {
		return nil, err
	}
	return reconcile.ParseGemList(out), nil
}

// ObserveSources lists the configured gem sources.
func ObserveSources(ctx context.Context, tr core.Transport) ([]string, error) {
	out, err := query(ctx, tr, reconcile.DomainSources, core.NewCommand("gem", "sources", "-l"))
	if err != nil {
		return nil, err
	}
	return reconcile.ParseSourceList(out), nil
}

// ObserveOrAssumeEmpty turns an unavailable observation into an empty one so
// that every declared item is planned. Other errors are returned unchanged.
func ObserveOrAssumeEmpty[T any](observed T, err error, logger core.Logger) (T, error) {
	var unavailable *core.ObservationUnavailable
	if errors.As(err, &unavailable) {
		logger.Warn("observation unavailable, assuming nothing is installed", "domain", unavailable.Domain, "error", unavailable.Err)
		var zero T
		return zero, nil
	}
	return observed, err
}
