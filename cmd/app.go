package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/melih-ucgun/fleetprov/internal/alias"
	"github.com/melih-ucgun/fleetprov/internal/config"
	"github.com/melih-ucgun/fleetprov/internal/consts"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/fleet"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
	"github.com/melih-ucgun/fleetprov/internal/provision"
	"github.com/melih-ucgun/fleetprov/internal/state"
	"github.com/melih-ucgun/fleetprov/internal/transport"
)

// app bundles what every command loads before it touches a host.
type app struct {
	flags   globalFlags
	cfg     *config.Config
	inv     *inventory.Inventory
	log     core.Logger
	metrics *metrics.Metrics
	state   *state.Manager
	backups *state.BackupManager
}

func newApp(f globalFlags) (*app, error) {
	if err := config.LoadEnvFile(f.envFile); err != nil {
		return nil, err
	}
	log := core.NewDefaultLogger(os.Stderr, core.LevelFromVerbosity(f.verbose), f.logFormat)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	inv, err := inventory.Load(f.inventoryPath)
	if err != nil {
		return nil, err
	}
	if inv.Domain != "" && inv.Domain != cfg.Domain {
		log.Warn("inventory domain differs from config domain", "inventory", inv.Domain, "config", cfg.Domain)
	}

	mgr, backups, err := openState()
	if err != nil {
		return nil, err
	}

	return &app{
		flags:   f,
		cfg:     cfg,
		inv:     inv,
		log:     log,
		metrics: metrics.New(),
		state:   mgr,
		backups: backups,
	}, nil
}

func openState() (*state.Manager, *state.BackupManager, error) {
	statePath, err := consts.GetStateFilePath()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := state.NewManager(statePath, &core.RealFS{})
	if err != nil {
		return nil, nil, err
	}
	backupDir, err := consts.GetBackupDir()
	if err != nil {
		return nil, nil, err
	}
	return mgr, state.NewBackupManager(backupDir), nil
}

// instances applies the --hosts and --roles filters.
func (a *app) instances() ([]inventory.Instance, error) {
	selected := a.inv.Select(a.flags.hosts, a.flags.roles)
	if len(selected) == 0 {
		return nil, errors.New("no instance matches the host and role filters")
	}
	return selected, nil
}

func (a *app) provisioner() *provision.Provisioner {
	return &provision.Provisioner{
		Config:    a.cfg,
		Inventory: a.inv,
		Env:       a.flags.env,
		Logger:    a.log,
		Metrics:   a.metrics,
		State:     a.state,
		Responder: func(host string) prompt.Responder {
			return prompt.NewStdinResponder(host)
		},
		AssumeEmpty: a.flags.assumeEmpty,
		DryRun:      a.flags.dryRun,
		Out:         os.Stdout,
	}
}

func (a *app) executor(instances []inventory.Instance) *fleet.Executor {
	opts := transport.Options{KnownHostsPath: a.flags.knownHosts, Echo: prompt.TerminalWriter(os.Stderr)}
	ex := fleet.NewExecutor(instances, a.flags.concurrency, func(ctx context.Context, inst inventory.Instance) (core.Transport, error) {
		return transport.Dial(ctx, inst, opts)
	})
	ex.Logger = a.log
	ex.Metrics = a.metrics
	return ex
}

// dispatcher runs provider tools such as nsupdate on the operator machine.
func (a *app) dispatcher() *alias.Dispatcher {
	return &alias.Dispatcher{
		Environments: a.cfg.DNS,
		Deps:         alias.Deps{Transport: transport.NewLocalTransport(), Logger: a.log},
		Metrics:      a.metrics,
	}
}

// runSequence runs a provisioning sequence on every selected host.
func (a *app) runSequence(ctx context.Context, command string) error {
	if _, ok := provision.Sequences[command]; !ok {
		return fmt.Errorf("unknown command %q", command)
	}
	instances, err := a.instances()
	if err != nil {
		return err
	}
	prov := a.provisioner()
	return a.executor(instances).Run(ctx, command, func(ctx context.Context, inst inventory.Instance, tr core.Transport) error {
		return prov.Run(ctx, command, inst, tr)
	})
}

// finish exports metrics. It runs even when the command failed.
func (a *app) finish(runErr error) error {
	if err := a.metrics.WriteTextfile(a.flags.metricsFile); err != nil {
		a.log.Warn("could not write metrics", "path", a.flags.metricsFile, "error", err)
	}
	return runErr
}
