package arbor

import (
	"github.com/petrijr/arbor/pkg/workers"
)

// StatefulWorkflow adapts strongly-typed functions to the Workflow
// interface, so simple workflows can be declared without defining a new
// type per workflow:
//
//	counter := arbor.StatefulWorkflow[int, int, CounterScreen]{
//	    Name:  "counter",
//	    Props: start,
//	    Init:  func(start int) int { return start },
//	    Body: func(start, count int, ctx arbor.RenderContext) CounterScreen {
//	        ...
//	    },
//	}
//
// Name participates in diff identity (via the Named interface): two
// StatefulWorkflows with the same type parameters but different Names are
// treated as different node types. Always set Name when more than one
// logical workflow shares the same instantiation.
type StatefulWorkflow[P, S, R any] struct {
	// Name refines diff identity for this workflow.
	Name string

	// Props are the construction parameters a parent supplies per render.
	Props P

	// Init builds the initial state from props. If nil, the zero value of
	// S is used.
	Init func(props P) S

	// Migrate carries state forward when props change across renders. If
	// nil, state is kept as-is.
	Migrate func(prevProps, props P, state S) S

	// Body renders the workflow. Required.
	Body func(props P, state S, ctx RenderContext) R
}

var _ Workflow = StatefulWorkflow[any, any, any]{}
var _ Named = StatefulWorkflow[any, any, any]{}

func (w StatefulWorkflow[P, S, R]) WorkflowName() string { return w.Name }

func (w StatefulWorkflow[P, S, R]) InitialState() any {
	if w.Init == nil {
		var zero S
		return zero
	}
	return w.Init(w.Props)
}

func (w StatefulWorkflow[P, S, R]) MigrateState(prev Workflow, state any) any {
	s := stateAs[S](state)
	if w.Migrate == nil {
		return s
	}
	p, ok := prev.(StatefulWorkflow[P, S, R])
	if !ok {
		return s
	}
	return w.Migrate(p.Props, w.Props, s)
}

func (w StatefulWorkflow[P, S, R]) Render(state any, ctx RenderContext) any {
	return w.Body(w.Props, stateAs[S](state), ctx)
}

// stateAs asserts a stored state back to S, treating a nil state as the zero
// value (asserting nil would panic even for S = any).
func stateAs[S any](state any) S {
	if state == nil {
		var zero S
		return zero
	}
	return state.(S)
}

// TypedAction wraps a strongly-typed transition function into an Action.
// Example:
//
//	sink.Send(arbor.TypedAction(func(s CounterState) (CounterState, any) {
//	    s.Count++
//	    return s, nil
//	}))
func TypedAction[S any](fn func(state S) (newState S, output any)) Action {
	return ActionFunc(func(state any) (any, any) {
		return fn(state.(S))
	})
}

// Worker adapters
// These re-export pkg/workers so common cases need only the root package.

type (
	// FuncWorker runs an arbitrary function identified by a token.
	FuncWorker = workers.FuncWorker

	// TickerWorker emits the tick time at a fixed interval.
	TickerWorker = workers.TickerWorker

	// DelayWorker emits a single value after a fixed delay.
	DelayWorker = workers.DelayWorker
)

// NewChannelWorker wraps a receive channel as a Worker; values received are
// emitted as worker outputs until the channel closes or the key is dropped.
func NewChannelWorker[T any](ch <-chan T) Worker {
	return workers.ChannelWorker[T]{Ch: ch}
}
