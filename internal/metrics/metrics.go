package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry      *prometheus.Registry
	actuations    *prometheus.CounterVec // package/source/gem tool calls
	aliasRequests *prometheus.CounterVec // dns provider calls
	hostRuns      *prometheus.CounterVec // per-host provisioning runs
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetprov_actuations_total",
			Help: "Package manager invocations by domain, phase and result.",
		}, []string{"domain", "phase", "result"}),
		aliasRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetprov_alias_requests_total",
			Help: "Alias provider calls by provider, operation and result.",
		}, []string{"provider", "operation", "result"}),
		hostRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetprov_host_runs_total",
			Help: "Per-host provisioning runs by command and result.",
		}, []string{"command", "result"}),
	}
	m.registry.MustRegister(m.actuations, m.aliasRequests, m.hostRuns)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncActuation(domain, phase string, success bool) {
	if m == nil {
		return
	}
	if phase == "" {
		phase = "all"
	}
	m.actuations.WithLabelValues(domain, phase, boolToResult(success)).Inc()
}

func (m *Metrics) IncAliasRequest(provider, operation string, success bool) {
	if m == nil {
		return
	}
	m.aliasRequests.WithLabelValues(provider, operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncHostRun(command string, success bool) {
	if m == nil {
		return
	}
	m.hostRuns.WithLabelValues(command, boolToResult(success)).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}
