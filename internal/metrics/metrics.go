package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PromNamespace   = "bundle_relay"
	BundleSubsystem = "bundle"
)

// Outcome labels for attempts.
const (
	OutcomeIncluded    = "included"
	OutcomeNotIncluded = "not_included"
	OutcomeSubmitError = "submit_error"
	OutcomeAwaitError  = "await_error"
	OutcomeBuildError  = "build_error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Attempts    *prometheus.CounterVec
	Simulations *prometheus.CounterVec
	TargetBlock prometheus.Gauge
	Runs        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PromNamespace,
		Subsystem: BundleSubsystem,
		Name:      "attempts_total",
		Help:      "Bundle submission attempts by outcome.",
	}, []string{"outcome"})
	simulations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PromNamespace,
		Subsystem: BundleSubsystem,
		Name:      "simulations_total",
		Help:      "Bundle simulations by relay verdict.",
	}, []string{"ok"})
	targetBlock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: PromNamespace,
		Subsystem: BundleSubsystem,
		Name:      "target_block",
		Help:      "Target block of the latest submitted bundle.",
	})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PromNamespace,
		Subsystem: BundleSubsystem,
		Name:      "runs_total",
		Help:      "Finished retry loops by final status.",
	}, []string{"status"})
	if reg != nil {
		reg.MustRegister(attempts, simulations, targetBlock, runs)
	}
	return &Metrics{
		Attempts:    attempts,
		Simulations: simulations,
		TargetBlock: targetBlock,
		Runs:        runs,
	}
}

func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Simulation(ok bool) {
	if m == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.Simulations.WithLabelValues(label).Inc()
}

func (m *Metrics) Target(block uint64) {
	if m == nil {
		return
	}
	m.TargetBlock.Set(float64(block))
}

func (m *Metrics) Finished(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}
