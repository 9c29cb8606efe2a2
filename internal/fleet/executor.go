package fleet

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// HostFunc runs one command against one host over its own transport.
type HostFunc func(ctx context.Context, inst inventory.Instance, tr core.Transport) error

// Dialer opens the transport of an instance.
type Dialer func(ctx context.Context, inst inventory.Instance) (core.Transport, error)

// Executor runs a HostFunc across a fleet. Every host gets its own transport;
// a failing host never stops the others.
type Executor struct {
	instances   []inventory.Instance
	concurrency int
	dial        Dialer

	Logger  core.Logger
	Metrics *metrics.Metrics
	// Out receives the per-host progress lines. Defaults to stderr.
	Out io.Writer
	// DialTimeout bounds connection setup per host.
	DialTimeout time.Duration

	outMu sync.Mutex
}

// NewExecutor creates a new fleet executor
func NewExecutor(instances []inventory.Instance, concurrency int, dial Dialer) *Executor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		instances:   instances,
		concurrency: concurrency,
		dial:        dial,
		DialTimeout: 30 * time.Second,
	}
}

// out serializes progress lines from concurrent hosts.
func (e *Executor) out() io.Writer {
	w := e.Out
	if w == nil {
		w = os.Stderr
	}
	return &lockedWriter{mu: &e.outMu, w: w}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (e *Executor) logger() core.Logger {
	if e.Logger == nil {
		return core.NopLogger{}
	}
	return e.Logger
}

// Run executes fn on every host and waits for all of them.
func (e *Executor) Run(ctx context.Context, command string, fn HostFunc) error {
	pterm.DefaultHeader.WithWriter(e.out()).WithBackgroundStyle(pterm.NewStyle(pterm.BgMagenta)).Printf("fleetprov %s (%d hosts)", command, len(e.instances))

	errs := make([]error, len(e.instances))
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, inst := range e.instances {
		g.Go(func() error {
			errs[i] = e.runOnHost(ctx, command, inst, fn)
			return nil
		})
	}
	_ = g.Wait() // Hatalar errs içinde toplanıyor, burada dönmüyor

	failures := &HostFailures{Failed: make(map[string]error)}
	for i, err := range errs {
		if err != nil {
			failures.Failed[e.instances[i].Name] = err
		}
	}

	if len(failures.Failed) > 0 {
		pterm.Error.WithWriter(e.out()).Printfln("%s failed on %d/%d hosts", command, len(failures.Failed), len(e.instances))
		return failures
	}
	pterm.Success.WithWriter(e.out()).Printfln("%s finished on %d hosts", command, len(e.instances))
	return nil
}

func (e *Executor) runOnHost(ctx context.Context, command string, inst inventory.Instance, fn HostFunc) (err error) {
	log := e.logger().With("host", inst.Name)
	defer func() {
		e.Metrics.IncHostRun(command, err == nil)
		if err != nil {
			log.Error(command+" failed", "error", err)
			pterm.Error.WithWriter(e.out()).Printfln("[%s] %v", inst.Name, err)
			return
		}
		pterm.Success.WithWriter(e.out()).Printfln("[%s] Done", inst.Name)
	}()

	// Bağlantı kurulumu için ayrı zaman aşımı
	dialCtx, cancel := context.WithTimeout(ctx, e.DialTimeout)
	tr, err := e.dial(dialCtx, inst)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := tr.Close(); cerr != nil {
			log.Warn("closing transport failed", "error", cerr)
		}
	}()

	log.Debug("running " + command)
	return fn(ctx, inst, tr)
}

// HostFailures maps failed host names to their error.
type HostFailures struct {
	Failed map[string]error
}

func (e *HostFailures) Error() string {
	hosts := e.Hosts()
	parts := make([]string, 0, len(hosts))
	for _, h := range hosts {
		parts = append(parts, fmt.Sprintf("[%s] %v", h, e.Failed[h]))
	}
	return fmt.Sprintf("%d host(s) failed: %s", len(hosts), strings.Join(parts, "; "))
}

// Hosts returns the failed host names in sorted order.
func (e *HostFailures) Hosts() []string {
	hosts := make([]string, 0, len(e.Failed))
	for h := range e.Failed {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
