// Package provision converges one host at a time: it observes the current
// state of each domain, plans the difference and applies it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/melih-ucgun/fleetprov/internal/config"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/hostsfile"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
	"github.com/melih-ucgun/fleetprov/internal/prompt"
	"github.com/melih-ucgun/fleetprov/internal/reconcile"
	"github.com/melih-ucgun/fleetprov/internal/state"
	"github.com/melih-ucgun/fleetprov/internal/system"
	"github.com/pterm/pterm"
)

// Step is one converging action on a host.
type Step string

const (
	StepTimezone        Step = "timezone"
	StepUpgradePackages Step = "upgrade-packages"
	StepInstallPackages Step = "install-packages"
	StepGemSources      Step = "gem-sources"
	StepInstallGems     Step = "install-gems"
	StepUpdateGems      Step = "update-gems"
	StepRemoteAliases   Step = "remote-aliases"
)

// Sequences maps each host command to its ordered steps.
var Sequences = map[string][]Step{
	"bootstrap":         {StepTimezone, StepUpgradePackages, StepInstallPackages, StepGemSources, StepInstallGems},
	"install":           {StepInstallPackages, StepInstallGems},
	"update":            {StepUpgradePackages, StepUpdateGems},
	"upgrade-packages":  {StepUpgradePackages},
	"install-packages":  {StepInstallPackages},
	"install-gems":      {StepInstallGems},
	"update-gems":       {StepUpdateGems},
	"setup-gem-sources": {StepGemSources},
	"aliases-remote":    {StepRemoteAliases},
}

// Provisioner holds everything shared by the per-host runs. It carries no
// per-host mutable state, so one value serves every goroutine.
type Provisioner struct {
	Config    *config.Config
	Inventory *inventory.Inventory
	Env       string
	Logger    core.Logger
	Metrics   *metrics.Metrics
	State     *state.Manager
	// Responder builds the prompt responder of one host.
	Responder func(host string) prompt.Responder
	// AssumeEmpty plans every declared item when the host cannot be queried.
	AssumeEmpty bool
	DryRun      bool
	// Out receives plan summaries and diffs. Defaults to stdout.
	Out io.Writer
}

func (p *Provisioner) logger() core.Logger {
	if p.Logger == nil {
		return core.NopLogger{}
	}
	return p.Logger
}

func (p *Provisioner) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// hostRun is the state of one command on one host.
type hostRun struct {
	inst     inventory.Instance
	tr       core.Transport
	bound    config.HostConfig
	log      core.Logger
	actuator *reconcile.Actuator
	tx       state.Transaction

	osChecked bool
}

// Run executes the steps of command on inst and records a transaction.
func (p *Provisioner) Run(ctx context.Context, command string, inst inventory.Instance, tr core.Transport) error {
	steps, ok := Sequences[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}
	return p.RunSteps(ctx, command, steps, inst, tr)
}

// RunSteps executes steps in order. Failures are joined; a failing step does
// not stop steps of other reconcilers.
func (p *Provisioner) RunSteps(ctx context.Context, command string, steps []Step, inst inventory.Instance, tr core.Transport) error {
	bound, err := p.Config.Bind(inst, p.Env)
	if err != nil {
		return fmt.Errorf("bind config: %w", err)
	}

	log := p.logger().With("host", inst.Name)
	run := &hostRun{
		inst:  inst,
		tr:    tr,
		bound: bound,
		log:   log,
		actuator: &reconcile.Actuator{
			Transport: tr,
			Logger:    log,
			Metrics:   p.Metrics,
			Sudo:      p.Config.UseSudo(),
			DryRun:    p.DryRun,
		},
		tx: state.Transaction{
			ID:        uuid.NewString(),
			Host:      inst.Name,
			Command:   command,
			Timestamp: time.Now(),
		},
	}

	// A failed step skips the later steps of the same reconciler only.
	var errs []error
	failed := make(map[string]bool)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		group := stepGroup(step)
		if failed[group] {
			log.Warn("skipping step after earlier failure", "step", step, "reconciler", group)
			continue
		}
		change, err := p.step(ctx, run, step)
		if err != nil {
			change.Error = err.Error()
			failed[group] = true
			log.Error("step failed", "step", step, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step, err))
		}
		if change.Domain != "" {
			run.tx.Changes = append(run.tx.Changes, change)
		}
	}
	runErr := errors.Join(errs...)

	p.record(run, runErr)
	return runErr
}

// stepGroup names the reconciler a step belongs to.
func stepGroup(step Step) string {
	switch step {
	case StepUpgradePackages, StepInstallPackages:
		return reconcile.DomainPackages
	case StepInstallGems, StepUpdateGems:
		return reconcile.DomainLanguagePackages
	case StepGemSources:
		return reconcile.DomainSources
	}
	return string(step)
}

func (p *Provisioner) record(run *hostRun, runErr error) {
	switch {
	case p.DryRun:
		run.tx.Status = state.StatusDryRun
	case runErr == nil:
		run.tx.Status = state.StatusSuccess
	case hasChanges(run.tx.Changes):
		run.tx.Status = state.StatusPartial
	default:
		run.tx.Status = state.StatusFailed
	}
	if p.State == nil || p.DryRun {
		return
	}
	if err := p.State.AddTransaction(run.tx); err != nil {
		run.log.Warn("could not record transaction", "error", err)
	}
}

func hasChanges(changes []state.TransactionChange) bool {
	for _, c := range changes {
		if c.Error == "" && len(c.Items) > 0 {
			return true
		}
	}
	return false
}

func (p *Provisioner) step(ctx context.Context, run *hostRun, step Step) (state.TransactionChange, error) {
	switch step {
	case StepTimezone:
		return p.timezone(ctx, run)
	case StepUpgradePackages:
		return p.packages(ctx, run, reconcile.ModeUpgrade)
	case StepInstallPackages:
		return p.packages(ctx, run, reconcile.ModeInstall)
	case StepGemSources:
		return p.sources(ctx, run)
	case StepInstallGems:
		return p.gems(ctx, run, reconcile.ModeInstall)
	case StepUpdateGems:
		return p.gems(ctx, run, reconcile.ModeUpdate)
	case StepRemoteAliases:
		return p.remoteAliases(ctx, run)
	}
	return state.TransactionChange{}, fmt.Errorf("unknown step %q", step)
}

func (p *Provisioner) observe(installed reconcile.Installed, err error, log core.Logger) (reconcile.Installed, error) {
	if p.AssumeEmpty {
		return ObserveOrAssumeEmpty(installed, err, log)
	}
	return installed, err
}

func (p *Provisioner) report(run *hostRun, domain, summary string) {
	if !p.DryRun {
		return
	}
	pterm.Info.WithWriter(p.out()).Printfln("[%s] %s: %s", run.inst.Name, domain, summary)
}

func (p *Provisioner) packages(ctx context.Context, run *hostRun, mode reconcile.Mode) (state.TransactionChange, error) {
	change := state.TransactionChange{Domain: reconcile.DomainPackages, Action: string(mode)}
	if mode == reconcile.ModeInstall && len(run.bound.Packages) == 0 {
		return state.TransactionChange{}, nil
	}
	if err := p.checkOS(run); err != nil {
		return change, err
	}

	var observed reconcile.Installed
	if mode == reconcile.ModeInstall {
		installed, err := ObservePackages(ctx, run.tr)
		observed, err = p.observe(installed, err, run.log)
		if err != nil {
			return change, err
		}
	}

	plan := reconcile.PlanPackages(run.bound.Packages, observed, mode)
	switch {
	case plan.Upgrade:
		p.report(run, change.Domain, "apt-get dist-upgrade")
	case plan.Empty():
		p.report(run, change.Domain, "up to date")
	default:
		p.report(run, change.Domain, "install "+plan.Args())
	}

	res, err := run.actuator.ApplyPackages(ctx, plan)
	change.Items = res.Items
	if plan.Upgrade && err == nil {
		change.Items = []string{"dist-upgrade"}
	}
	return change, err
}

// checkOS refuses hosts whose os-release names a distribution without apt.
// Hosts without a readable os-release are attempted anyway.
func (p *Provisioner) checkOS(run *hostRun) error {
	if run.osChecked {
		return nil
	}
	run.osChecked = true
	rel, err := system.Detect(run.tr.FS())
	if err != nil {
		run.log.Debug("os detection skipped", "error", err)
		return nil
	}
	if !rel.UsesApt() {
		return &system.UnsupportedOS{Release: rel}
	}
	run.log.Debug("detected " + rel.String())
	return nil
}

func (p *Provisioner) gems(ctx context.Context, run *hostRun, mode reconcile.Mode) (state.TransactionChange, error) {
	if len(run.bound.Gems) == 0 {
		return state.TransactionChange{}, nil
	}
	change := state.TransactionChange{Domain: reconcile.DomainLanguagePackages, Action: string(mode)}

	installed, err := ObserveGems(ctx, run.tr)
	observed, err := p.observe(installed, err, run.log)
	if err != nil {
		return change, err
	}
	plan := reconcile.PlanGems(run.bound.Gems, observed, mode)
	if plan.Empty() {
		p.report(run, change.Domain, "up to date")
	} else {
		var parts []string
		if len(plan.Unversioned) > 0 {
			parts = append(parts, strings.Join(plan.Unversioned, " "))
		}
		if len(plan.Versioned) > 0 {
			parts = append(parts, strings.Join(plan.VersionedArgs(), " "))
		}
		p.report(run, change.Domain, plan.Verb()+" "+strings.Join(parts, " | "))
	}

	var responder prompt.Responder
	if p.Responder != nil {
		responder = p.Responder(run.inst.Name)
	}
	res, err := run.actuator.ApplyGems(ctx, plan, responder)
	change.Items = res.Items
	return change, err
}

func (p *Provisioner) sources(ctx context.Context, run *hostRun) (state.TransactionChange, error) {
	if len(run.bound.GemSources) == 0 {
		return state.TransactionChange{}, nil
	}
	change := state.TransactionChange{Domain: reconcile.DomainSources, Action: "sync"}

	observed, err := ObserveSources(ctx, run.tr)
	if p.AssumeEmpty {
		observed, err = ObserveOrAssumeEmpty(observed, err, run.log)
	}
	if err != nil {
		return change, err
	}
	plan := reconcile.PlanSources(run.bound.GemSources, observed)
	p.report(run, change.Domain, fmt.Sprintf("add %v remove %v", plan.ToAdd, plan.ToRemove))

	res, err := run.actuator.ApplySources(ctx, plan)
	change.Items = res.Items
	return change, err
}

func (p *Provisioner) timezone(ctx context.Context, run *hostRun) (state.TransactionChange, error) {
	tz := run.bound.Timezone
	if tz == "" {
		return state.TransactionChange{}, nil
	}
	change := state.TransactionChange{Domain: "timezone", Action: "set", Target: "/etc/timezone"}

	current, err := run.tr.FS().ReadFile("/etc/timezone")
	if err == nil && strings.TrimSpace(string(current)) == tz {
		p.report(run, change.Domain, "up to date")
		return change, nil
	}
	p.report(run, change.Domain, "set "+tz)
	if p.DryRun {
		return change, nil
	}

	quoted := core.ShellQuote(tz)
	cmd := core.NewCommand("sh", "-c", "echo "+quoted+" > /etc/timezone && cp /usr/share/zoneinfo/"+quoted+" /etc/localtime")
	cmd.Sudo = p.Config.UseSudo()
	res, err := run.tr.Execute(ctx, cmd)
	if err != nil {
		return change, err
	}
	if !res.Success() {
		return change, &core.ActuationFailed{Domain: change.Domain, Items: []string{tz}, ExitCode: res.ExitCode, Output: res.Output}
	}
	change.Items = []string{tz}
	return change, nil
}

func (p *Provisioner) remoteAliases(ctx context.Context, run *hostRun) (state.TransactionChange, error) {
	change := state.TransactionChange{Domain: hostsfile.Domain, Action: "remote", Target: hostsfile.Path}

	table, err := hostsfile.RemoteTable(p.Inventory.Instances)
	if err != nil {
		return change, err
	}
	delim := hostsfile.RemoteDelimiter(p.Env)
	syncer := &hostsfile.Syncer{
		Transport: run.tr,
		Logger:    run.log,
		Sudo:      p.Config.UseSudo(),
		DryRun:    p.DryRun,
	}
	out, err := syncer.Sync(ctx, delim, delim, table)
	if err != nil {
		return change, err
	}
	if out.Changed {
		change.Items = append(change.Items, hostsfile.Path)
		if p.DryRun {
			fmt.Fprintf(p.out(), "--- %s:%s\n%s", run.inst.Name, hostsfile.Path, out.Diff)
		}
	}

	if err := syncer.SetHostname(ctx, run.inst.Name); err != nil {
		return change, err
	}
	change.Items = append(change.Items, "hostname="+run.inst.Name)
	return change, nil
}

// LocalAliases rewrites the hosts file of the operator machine through tr.
// The previous file is kept by backups, keyed by the recorded transaction.
func (p *Provisioner) LocalAliases(ctx context.Context, tr core.Transport, backups hostsfile.Backuper) (hostsfile.Outcome, error) {
	table, err := hostsfile.LocalTable(p.Inventory.Instances)
	if err != nil {
		return hostsfile.Outcome{}, err
	}
	txID := uuid.NewString()
	delim := hostsfile.LocalDelimiter(p.Config.Domain, p.Env)
	syncer := &hostsfile.Syncer{
		Transport: tr,
		Logger:    p.logger(),
		Backups:   backups,
		TxID:      txID,
		Sudo:      true,
		DryRun:    p.DryRun,
	}
	p.logger().Info("Writing out aliases into local machine hosts file, sudo access needed", "path", hostsfile.Path)
	out, err := syncer.Sync(ctx, delim, delim, table)

	change := state.TransactionChange{Domain: hostsfile.Domain, Action: "local", Target: hostsfile.Path, BackupPath: out.BackupPath}
	if out.Changed {
		change.Items = []string{hostsfile.Path}
	}
	if err != nil {
		change.Error = err.Error()
	}
	if p.DryRun && out.Changed {
		fmt.Fprintf(p.out(), "--- local:%s\n%s", hostsfile.Path, out.Diff)
	}

	tx := state.Transaction{ID: txID, Host: "local", Command: "aliases-local", Timestamp: time.Now(), Changes: []state.TransactionChange{change}}
	p.record(&hostRun{tx: tx, log: p.logger()}, err)
	return out, err
}
