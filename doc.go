// Package arbor provides an embeddable workflow tree runtime for Go.
//
// Arbor composes a tree of stateful, recursively-nestable state machines
// ("workflows"), runs a synchronous render pass across that tree, manages
// the lifecycle of asynchronous side effects attached to tree nodes, and
// funnels every event back through a single serialized update loop that
// triggers the next render pass. It runs fully in-process, has no opinion
// about how renderings are displayed, and does not bake in any particular
// asynchronous-primitive library.
//
// # Core Concepts
//
// The arbor programming model is intentionally small:
//
//  1. Workflow
//  2. Action and Sink
//  3. Worker
//  4. Tree
//  5. Observer
//
// # Workflow
//
// A Workflow is an immutable definition of one composable unit: how to
// build its initial state, how to migrate that state when a parent
// re-renders it with new parameters, and how to render it. Rendering is
// synchronous and I/O-free; it may declare children (rendered recursively)
// and keyed asynchronous workers, and it returns an arbitrary rendering
// value for the host's view layer.
//
// Between consecutive render passes, each node's children are diffed by
// (concrete type, sibling key) identity: a pair that appears in both passes
// keeps its node and state, a new pair gets a fresh node, and a pair that
// disappears is torn down along with all of its descendants and workers.
// This is what lets a subtree's state (edit buffers, in-flight requests,
// scroll positions) survive structurally-unchanged re-renders while state
// for vanished subtrees is discarded automatically.
//
// # Action and Sink
//
// State never mutates in place. A workflow's rendering captures Sinks;
// invoking a sink delivers an Action (a pure state-transition function)
// into the tree's update loop. Actions are applied one at a time,
// tree-wide, in arrival order; each application may bubble an output to the
// parent node and is followed by exactly one render pass from the root.
//
// # Worker
//
// Workers are the only legal channel for asynchronous or impure work. A
// worker is declared during rendering under a key and keeps running for as
// long as the key keeps being declared; a caller-supplied equivalence
// relation prevents logically-identical work from being restarted across
// re-renders. Dropping the key cancels the worker cooperatively, and
// anything it emits after cancellation is discarded. The workers package
// ships adapters for functions, channels, tickers, and delays.
//
// # Tree
//
// The Tree owns the root node, the update loop, and the published values:
//
//	tr := arbor.NewTree(rootWorkflow)
//	if err := tr.Start(ctx); err != nil { ... }
//	defer tr.Stop()
//
//	for rendering := range tr.Renderings() {
//	    display(rendering)
//	}
//
// The host may call Update(newRoot) at any time to swap the root
// definition, exactly as if a parent had re-rendered it.
//
// # Observer
//
// Observers receive read-only callbacks at render, event, and lifecycle
// boundaries. Ready-made implementations include structured logging via
// log/slog, in-memory counters (BasicMetrics), Prometheus collectors
// (pkg/metrics), an append-only journal with memory, SQLite, and Redis
// backends, and a WebSocket inspection server (pkg/devserver). Observers
// cannot alter tree semantics.
//
// # Summary
//
// Arbor's goal is a unidirectional-data-flow runtime that feels like Go:
// easy to embed, easy to test, deterministic, and without operational
// overhead. Workflows declare structure, Actions transition state, Workers
// carry side effects, and the Tree serializes everything into a predictable
// render loop.
//
// For examples, see the /examples directory or the project README.
package arbor
