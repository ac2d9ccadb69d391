// Package api contains the core contracts used by the arbor workflow tree
// runtime. It defines the primitives for declaring workflows, transitioning
// state through actions, attaching asynchronous workers, and observing
// runtime behavior.
//
// Most users interact with the higher-level arbor package, which re-exports
// selected types and helpers from this package. The api package is intended
// for advanced use cases, custom integrations, or contributors extending the
// runtime itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - Workflow definitions
//   - Actions and sinks
//   - Workers and side effects
//   - Observability
//
// # Workflow Definitions
//
// A Workflow is an immutable description of one composable stateful unit:
// how to build its initial state, how to migrate state when a parent
// re-renders it with fresh parameters, and how to render it. The runtime
// composes definitions into a tree of live nodes, diffing each level's
// children by (type, key) identity across render passes so that state
// survives structurally-unchanged re-renders.
//
// Definitions must not hold runtime state of their own; the runtime owns
// each node's state exclusively, and mutates it only by applying Actions on
// the tree's serialized update loop.
//
// # Actions and Sinks
//
// An Action is a pure description of one state transition. Actions reach
// the runtime through Sinks: node-bound handles created during a render pass
// that may be captured in renderings and invoked later from any goroutine.
// Each applied action triggers exactly one render pass from the root.
//
// # Workers and Side Effects
//
// Asynchronous or impure work is declared during rendering via keyed
// workers. A worker keeps running for as long as its key keeps being
// registered, is deduplicated across passes by a caller-supplied equivalence
// relation, and is cooperatively cancelled when its key disappears. Worker
// outputs funnel back into the tree as events; they are never applied to
// state directly.
//
// # Observability
//
// The Observer interface reports pass, event, and lifecycle milestones.
// Ready-made implementations include logging (slog), in-memory counters,
// journaling to an append-only store, and composition helpers. Observers
// are strictly read-only with respect to tree semantics.
//
// See the arbor package documentation and the examples directory for
// end-to-end usage.
package api
