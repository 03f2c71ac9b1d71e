// Package imetrics accounts internal events of the monitor: sampling, actions
// and connected clients.
package imetrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sample outcomes
const (
	SampleOK      = "ok"
	SampleFailed  = "failed"
	SampleSkipped = "skipped"
)

// Reporter of internal metrics
type Reporter interface {
	// SampleFinished is invoked once per sampler tick with its outcome.
	SampleFinished(outcome string, took time.Duration, records int)
	// ActionFinished is invoked when a dispatched action reports.
	ActionFinished(kind, errorKind string)
	ClientConnect()
	ClientDisconnect()
}

// NoopReporter is a metrics Reporter that just does nothing
type NoopReporter struct{}

func (NoopReporter) SampleFinished(string, time.Duration, int) {}
func (NoopReporter) ActionFinished(string, string)             {}
func (NoopReporter) ClientConnect()                            {}
func (NoopReporter) ClientDisconnect()                         {}

type promReporter struct {
	samples        *prometheus.CounterVec
	sampleDuration prometheus.Histogram
	snapshotSize   prometheus.Gauge
	actions        *prometheus.CounterVec
	clients        prometheus.Gauge
	buildInfo      prometheus.Gauge
}

// NewPrometheus registers the internal metrics in reg
func NewPrometheus(reg prometheus.Registerer) Reporter {
	pr := &promReporter{
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardians_samples_total",
			Help: "Sampler ticks by outcome (ok, failed, skipped because the previous sample was in flight)",
		}, []string{"outcome"}),
		sampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardians_sample_duration_seconds",
			Help:    "How long a process enumeration took",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guardians_snapshot_processes",
			Help: "Number of processes in the latest snapshot",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardians_actions_total",
			Help: "Dispatched process actions by kind and result (ok or error kind)",
		}, []string{"kind", "result"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guardians_connected_clients",
			Help: "How many WebSocket clients are subscribed to projections",
		}),
		buildInfo: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guardians_build_info",
			Help: "A metric with a constant '1' value labeled by goos, goarch and goversion.",
			ConstLabels: map[string]string{
				"goarch":    runtime.GOARCH,
				"goos":      runtime.GOOS,
				"goversion": runtime.Version(),
			},
		}),
	}
	pr.buildInfo.Set(1)
	reg.MustRegister(pr.samples, pr.sampleDuration, pr.snapshotSize, pr.actions, pr.clients, pr.buildInfo)
	return pr
}

func (p *promReporter) SampleFinished(outcome string, took time.Duration, records int) {
	p.samples.WithLabelValues(outcome).Inc()
	if outcome == SampleOK {
		p.sampleDuration.Observe(took.Seconds())
		p.snapshotSize.Set(float64(records))
	}
}

func (p *promReporter) ActionFinished(kind, errorKind string) {
	result := errorKind
	if result == "" {
		result = "ok"
	}
	p.actions.WithLabelValues(kind, result).Inc()
}

func (p *promReporter) ClientConnect() {
	p.clients.Inc()
}

func (p *promReporter) ClientDisconnect() {
	p.clients.Dec()
}
