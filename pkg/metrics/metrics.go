// Package metrics exposes tree runtime activity as Prometheus metrics.
// The Observer here is a drop-in alternative (or complement, via
// api.NewCompositeObserver) to the in-memory api.BasicMetrics when the host
// already runs a Prometheus scrape endpoint.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/arbor/pkg/api"
)

// Observer implements api.Observer by updating Prometheus collectors.
type Observer struct {
	api.NoopObserver

	renderPasses    prometheus.Counter
	renderDuration  prometheus.Histogram
	eventsApplied   prometheus.Counter
	eventsDiscarded prometheus.Counter
	outputs         prometheus.Counter
	liveNodes       prometheus.Gauge
	liveWorkers     prometheus.Gauge
}

// NewObserver creates an Observer and registers its collectors with reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
// Registration failures panic, matching prometheus.MustRegister semantics.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		renderPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_render_passes_total",
			Help: "Total number of render passes.",
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_render_duration_seconds",
			Help:    "Duration of render passes.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		eventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_events_applied_total",
			Help: "Total number of events applied to tree nodes.",
		}),
		eventsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_events_discarded_total",
			Help: "Total number of events discarded because their node was torn down.",
		}),
		outputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_outputs_total",
			Help: "Total number of outputs emitted by root workflows.",
		}),
		liveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_live_nodes",
			Help: "Number of live tree nodes.",
		}),
		liveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_live_workers",
			Help: "Number of running workers and side effects.",
		}),
	}

	reg.MustRegister(
		o.renderPasses,
		o.renderDuration,
		o.eventsApplied,
		o.eventsDiscarded,
		o.outputs,
		o.liveNodes,
		o.liveWorkers,
	)
	return o
}

var _ api.Observer = (*Observer)(nil)

func (o *Observer) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	o.renderPasses.Inc()
	o.renderDuration.Observe(d.Seconds())
}

func (o *Observer) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	o.eventsApplied.Inc()
}

func (o *Observer) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	o.eventsDiscarded.Inc()
}

func (o *Observer) OnOutput(ctx context.Context, sessionID string, output any) {
	o.outputs.Inc()
}

func (o *Observer) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	o.liveNodes.Inc()
}

func (o *Observer) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	o.liveNodes.Dec()
}

func (o *Observer) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	o.liveWorkers.Inc()
}

func (o *Observer) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	o.liveWorkers.Dec()
}
