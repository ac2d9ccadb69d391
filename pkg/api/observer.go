package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the tree runtime at pass, event, and
// lifecycle boundaries. Observers are read-only: they must not feed actions
// back into the tree or otherwise alter runtime semantics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay the update loop.
type Observer interface {
	// OnTreeStarted is called once when the tree's update loop starts,
	// before the initial render pass.
	OnTreeStarted(ctx context.Context, sessionID string)

	// OnTreeStopped is called once after the tree has been torn down and
	// the update loop has exited.
	OnTreeStopped(ctx context.Context, sessionID string)

	// OnRenderPassStart is called before each render pass from the root.
	// pass is a monotonically increasing counter starting at 1.
	OnRenderPassStart(ctx context.Context, sessionID string, pass int64)

	// OnRenderPassCompleted is called after each render pass, before the
	// new rendering is published.
	OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration)

	// OnEventApplied is called after an action has been applied to the
	// node at nodePath, before the resulting render pass.
	OnEventApplied(ctx context.Context, sessionID, nodePath string)

	// OnEventDiscarded is called when an event arrives for a node that has
	// already been torn down.
	OnEventDiscarded(ctx context.Context, sessionID, nodePath string)

	// OnOutput is called when the root workflow emits an output.
	OnOutput(ctx context.Context, sessionID string, output any)

	// OnNodeCreated is called when a (type, key) pair appears for the
	// first time and a node is constructed for it.
	OnNodeCreated(ctx context.Context, sessionID, nodePath string)

	// OnNodeTornDown is called when a node is torn down, either because
	// its (type, key) disappeared from a pass or because the tree stopped.
	OnNodeTornDown(ctx context.Context, sessionID, nodePath string)

	// OnWorkerStarted is called when a keyed worker or side effect is
	// started on the node at nodePath.
	OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string)

	// OnWorkerStopped is called when a keyed worker or side effect is
	// cancelled because its key stopped being registered (or its node was
	// torn down).
	OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnTreeStarted(ctx context.Context, sessionID string)               {}
func (NoopObserver) OnTreeStopped(ctx context.Context, sessionID string)               {}
func (NoopObserver) OnRenderPassStart(ctx context.Context, sessionID string, p int64)  {}
func (NoopObserver) OnRenderPassCompleted(ctx context.Context, sessionID string, p int64, d time.Duration) {
}
func (NoopObserver) OnEventApplied(ctx context.Context, sessionID, nodePath string)          {}
func (NoopObserver) OnEventDiscarded(ctx context.Context, sessionID, nodePath string)        {}
func (NoopObserver) OnOutput(ctx context.Context, sessionID string, output any)             {}
func (NoopObserver) OnNodeCreated(ctx context.Context, sessionID, nodePath string)          {}
func (NoopObserver) OnNodeTornDown(ctx context.Context, sessionID, nodePath string)         {}
func (NoopObserver) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string)   {}
func (NoopObserver) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string)   {}

// CompositeObserver fans out callbacks to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards callbacks to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTreeStarted(ctx context.Context, sessionID string) {
	for _, o := range c.observers {
		o.OnTreeStarted(ctx, sessionID)
	}
}

func (c *CompositeObserver) OnTreeStopped(ctx context.Context, sessionID string) {
	for _, o := range c.observers {
		o.OnTreeStopped(ctx, sessionID)
	}
}

func (c *CompositeObserver) OnRenderPassStart(ctx context.Context, sessionID string, pass int64) {
	for _, o := range c.observers {
		o.OnRenderPassStart(ctx, sessionID, pass)
	}
}

func (c *CompositeObserver) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	for _, o := range c.observers {
		o.OnRenderPassCompleted(ctx, sessionID, pass, d)
	}
}

func (c *CompositeObserver) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	for _, o := range c.observers {
		o.OnEventApplied(ctx, sessionID, nodePath)
	}
}

func (c *CompositeObserver) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	for _, o := range c.observers {
		o.OnEventDiscarded(ctx, sessionID, nodePath)
	}
}

func (c *CompositeObserver) OnOutput(ctx context.Context, sessionID string, output any) {
	for _, o := range c.observers {
		o.OnOutput(ctx, sessionID, output)
	}
}

func (c *CompositeObserver) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	for _, o := range c.observers {
		o.OnNodeCreated(ctx, sessionID, nodePath)
	}
}

func (c *CompositeObserver) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	for _, o := range c.observers {
		o.OnNodeTornDown(ctx, sessionID, nodePath)
	}
}

func (c *CompositeObserver) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	for _, o := range c.observers {
		o.OnWorkerStarted(ctx, sessionID, nodePath, key)
	}
}

func (c *CompositeObserver) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	for _, o := range c.observers {
		o.OnWorkerStopped(ctx, sessionID, nodePath, key)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs tree lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnTreeStarted(ctx context.Context, sessionID string) {
	o.Logger.InfoContext(ctx, "tree_started",
		slog.String("session_id", sessionID),
	)
}

func (o *LoggingObserver) OnTreeStopped(ctx context.Context, sessionID string) {
	o.Logger.InfoContext(ctx, "tree_stopped",
		slog.String("session_id", sessionID),
	)
}

func (o *LoggingObserver) OnRenderPassStart(ctx context.Context, sessionID string, pass int64) {
	o.Logger.DebugContext(ctx, "render_pass_start",
		slog.String("session_id", sessionID),
		slog.Int64("pass", pass),
	)
}

func (o *LoggingObserver) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	o.Logger.DebugContext(ctx, "render_pass_completed",
		slog.String("session_id", sessionID),
		slog.Int64("pass", pass),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	o.Logger.DebugContext(ctx, "event_applied",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
	)
}

func (o *LoggingObserver) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	o.Logger.WarnContext(ctx, "event_discarded",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
	)
}

func (o *LoggingObserver) OnOutput(ctx context.Context, sessionID string, output any) {
	o.Logger.InfoContext(ctx, "output_emitted",
		slog.String("session_id", sessionID),
		slog.Any("output", output),
	)
}

func (o *LoggingObserver) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	o.Logger.DebugContext(ctx, "node_created",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
	)
}

func (o *LoggingObserver) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	o.Logger.DebugContext(ctx, "node_torn_down",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
	)
}

func (o *LoggingObserver) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	o.Logger.DebugContext(ctx, "worker_started",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
		slog.String("key", key),
	)
}

func (o *LoggingObserver) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	o.Logger.DebugContext(ctx, "worker_stopped",
		slog.String("session_id", sessionID),
		slog.String("node", nodePath),
		slog.String("key", key),
	)
}

// BasicMetrics collects simple counters and aggregate render durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	renderPasses        atomic.Int64
	eventsApplied       atomic.Int64
	eventsDiscarded     atomic.Int64
	outputs             atomic.Int64
	nodesCreated        atomic.Int64
	nodesTornDown       atomic.Int64
	workersStarted      atomic.Int64
	workersStopped      atomic.Int64
	totalRenderDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RenderPasses    int64
	EventsApplied   int64
	EventsDiscarded int64
	Outputs         int64

	NodesCreated  int64
	NodesTornDown int64
	LiveNodes     int64

	WorkersStarted int64
	WorkersStopped int64
	LiveWorkers    int64

	AvgRenderDuration time.Duration
}

func (m *BasicMetrics) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	m.renderPasses.Add(1)
	m.totalRenderDuration.Add(d.Nanoseconds())
}

func (m *BasicMetrics) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	m.eventsApplied.Add(1)
}

func (m *BasicMetrics) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	m.eventsDiscarded.Add(1)
}

func (m *BasicMetrics) OnOutput(ctx context.Context, sessionID string, output any) {
	m.outputs.Add(1)
}

func (m *BasicMetrics) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	m.nodesCreated.Add(1)
}

func (m *BasicMetrics) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	m.nodesTornDown.Add(1)
}

func (m *BasicMetrics) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	m.workersStarted.Add(1)
}

func (m *BasicMetrics) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	m.workersStopped.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	passes := m.renderPasses.Load()
	totalNs := m.totalRenderDuration.Load()

	var avg time.Duration
	if passes > 0 {
		avg = time.Duration(totalNs / passes)
	}

	created := m.nodesCreated.Load()
	torn := m.nodesTornDown.Load()
	started := m.workersStarted.Load()
	stopped := m.workersStopped.Load()

	return BasicMetricsSnapshot{
		RenderPasses:      passes,
		EventsApplied:     m.eventsApplied.Load(),
		EventsDiscarded:   m.eventsDiscarded.Load(),
		Outputs:           m.outputs.Load(),
		NodesCreated:      created,
		NodesTornDown:     torn,
		LiveNodes:         created - torn,
		WorkersStarted:    started,
		WorkersStopped:    stopped,
		LiveWorkers:       started - stopped,
		AvgRenderDuration: avg,
	}
}
