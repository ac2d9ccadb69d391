package api

import "context"

// Workflow is an immutable definition of one composable stateful unit in a
// tree. A definition describes *what* a node should be: its construction
// parameters plus the three operations the runtime needs. The runtime owns
// the live instance (the node) and its state; the definition itself must
// never hold mutable runtime state.
//
// Node identity for tree diffing is the definition's concrete Go type plus
// the sibling key passed to RenderContext.RenderChild. A definition may
// additionally implement Named to refine its identity, which matters for
// generic adapter types that would otherwise collide.
type Workflow interface {
	// InitialState builds the state for a node the first time its
	// (type, key) pair appears in a render pass.
	InitialState() any

	// MigrateState carries existing state forward when a parent re-renders
	// this node with a fresh definition. prev is the definition from the
	// previous pass; state is the node's current state. It is called on
	// every pass after the first, before Render.
	MigrateState(prev Workflow, state any) any

	// Render produces the rendering for one pass. It must be synchronous,
	// free of I/O, and safe to call repeatedly for equivalent inputs: all
	// asynchronous work goes through ctx.RunWorker / ctx.RunSideEffect,
	// and all state changes go through Actions delivered to a Sink.
	Render(state any, ctx RenderContext) any
}

// Named optionally refines a Workflow's diff identity. Two definitions of
// the same concrete type but different names are treated as different node
// types during reconciliation.
type Named interface {
	WorkflowName() string
}

// Action describes one state transition of a single node. Apply is pure and
// is invoked at most once per delivered event, on the tree's update loop.
// The returned output, if non-nil, bubbles to the parent node (or to the
// tree's Outputs stream for the root).
type Action interface {
	Apply(state any) (newState any, output any)
}

// ActionFunc adapts an ordinary function to the Action interface.
type ActionFunc func(state any) (newState any, output any)

func (f ActionFunc) Apply(state any) (any, any) { return f(state) }

// Sink delivers Actions into the tree's serialized event loop. A sink is
// bound to the node whose RenderContext created it, not to a single render
// pass: it may be captured in a rendering and invoked later, from any
// goroutine. Sends for a node that has since been torn down are discarded.
type Sink interface {
	Send(Action)
}

// OutputHandler maps a child's output (or a worker's output) to an Action on
// the receiving node. A nil OutputHandler drops outputs at that boundary.
type OutputHandler func(output any) Action

// RenderContext is handed to Workflow.Render for exactly one render pass of
// exactly one node. Using a context after its pass has returned is a
// programmer error and panics. Sinks obtained from it remain valid.
type RenderContext interface {
	// RenderChild reconciles and renders a child node under the given
	// sibling key. If the same (type, key) pair existed in the previous
	// pass, the child's state is preserved and migrated; otherwise a new
	// node is created. Rendering the same (type, key) twice within one
	// pass panics.
	//
	// onOutput maps the child's outputs to actions on this node; nil drops
	// them.
	RenderChild(child Workflow, key string, onOutput OutputHandler) any

	// ActionSink returns the sink bound to this node. The same sink is
	// returned on every pass.
	ActionSink() Sink

	// RunWorker declares a keyed unit of asynchronous work that should be
	// running for as long as its key keeps being registered. If the key
	// was registered in the previous pass with an Equivalent worker, the
	// running instance is left untouched and only onOutput is refreshed.
	// If the key is new (or the worker is not equivalent), the work is
	// started with a cancellation scope tied to the key's registration.
	// Dropping the key on a later pass cancels the scope before that pass
	// completes. Registering the same key twice within one pass panics.
	RunWorker(key string, w Worker, onOutput OutputHandler)

	// RunSideEffect is the parameterless variant of RunWorker: fn runs
	// until key stops being registered, with equivalence defined by key
	// presence alone. fn must honor ctx cancellation and must not touch
	// node state directly.
	RunSideEffect(key string, fn func(ctx context.Context))
}

// Worker is a cancellable unit of asynchronous work producing zero or more
// outputs over time. Implementations run on their own goroutine; outputs
// are funneled back into the tree as events via the emit callback and are
// never applied to state directly. After cancellation, emitted values are
// discarded by the runtime, so workers should simply return promptly.
type Worker interface {
	// Run performs the work, calling emit for each produced output. It
	// should return when ctx is cancelled or the work is done.
	Run(ctx context.Context, emit func(output any))

	// Equivalent reports whether w describes the same logical work as
	// other, so that an already-running instance is kept across render
	// passes instead of being restarted.
	Equivalent(other Worker) bool
}

// Tree owns a root node and the serialized update loop that applies events,
// re-renders, and republishes renderings and outputs.
type Tree interface {
	// Start performs the initial render pass and begins applying events.
	// It returns an error if the tree is already running.
	Start(ctx context.Context) error

	// Stop tears down the whole tree, cancelling all workers, and waits
	// for the update loop to exit. It is idempotent.
	Stop()

	// Update swaps in a new root definition, exactly as if a parent had
	// re-rendered the root: state is preserved when the definition's
	// identity matches, and the tree re-renders and republishes. It is
	// serialized with event application and safe to call from any
	// goroutine.
	Update(root Workflow)

	// Rendering returns the most recently published rendering, or nil
	// before the first pass.
	Rendering() any

	// Renderings returns an independent subscription receiving every
	// published rendering. The channel is closed when the tree stops.
	Renderings() <-chan any

	// Outputs returns an independent subscription receiving every output
	// emitted by the root workflow. The channel is closed when the tree
	// stops.
	Outputs() <-chan any

	// SessionID identifies this tree instance in journal records and
	// observer callbacks.
	SessionID() string
}
