package arbor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/arbor"
	"github.com/petrijr/arbor/pkg/workers"
)

const pollInterval = 2 * time.Millisecond

// waitFor polls cond until it returns true or the deadline expires.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("condition not met within %s", d)
}

// serialChild hands out a unique serial number per created node, which makes
// node reuse vs. recreation directly observable in renderings.
type serialChild struct {
	Serials *atomic.Int64
}

func (c serialChild) InitialState() any { return c.Serials.Add(1) }

func (c serialChild) MigrateState(prev arbor.Workflow, state any) any { return state }

func (c serialChild) Render(state any, ctx arbor.RenderContext) any { return state.(int64) }

// keyedParent renders one serialChild per key.
type keyedParent struct {
	Keys    []string
	Serials *atomic.Int64
}

func (keyedParent) InitialState() any { return nil }

func (keyedParent) MigrateState(prev arbor.Workflow, state any) any { return state }

func (p keyedParent) Render(state any, ctx arbor.RenderContext) any {
	out := make(map[string]int64, len(p.Keys))
	for _, key := range p.Keys {
		out[key] = ctx.RenderChild(serialChild{Serials: p.Serials}, key, nil).(int64)
	}
	return out
}

func TestChildStatePreservedAcrossKeyChanges(t *testing.T) {
	t.Parallel()

	serials := &atomic.Int64{}
	metrics := &arbor.BasicMetrics{}
	tr := arbor.NewTreeWithObserver(keyedParent{Keys: []string{"a", "b"}, Serials: serials}, metrics)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	first := tr.Rendering().(map[string]int64)
	require.Equal(t, map[string]int64{"a": 1, "b": 2}, first)

	// "b" survives the key-set change with its node intact; "a" is torn
	// down; "c" is created fresh.
	tr.Update(keyedParent{Keys: []string{"b", "c"}, Serials: serials})
	waitFor(t, 2*time.Second, func() bool {
		m, ok := tr.Rendering().(map[string]int64)
		return ok && len(m) == 2 && m["c"] != 0
	})

	second := tr.Rendering().(map[string]int64)
	require.Equal(t, map[string]int64{"b": 2, "c": 3}, second)

	waitFor(t, 2*time.Second, func() bool {
		return metrics.Snapshot().NodesTornDown == 1
	})
}

// listRoot accumulates strings through actions, which makes event ordering
// observable.
type listRoot struct{}

type listScreen struct {
	Items  []string
	Append func(item string)
}

func (listRoot) InitialState() any { return []string(nil) }

func (listRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (listRoot) Render(state any, ctx arbor.RenderContext) any {
	sink := ctx.ActionSink()
	return listScreen{
		Items: state.([]string),
		Append: func(item string) {
			sink.Send(arbor.ActionFunc(func(s any) (any, any) {
				items := s.([]string)
				return append(append([]string(nil), items...), item), nil
			}))
		},
	}
}

func TestEventsAppliedInArrivalOrder(t *testing.T) {
	t.Parallel()

	metrics := &arbor.BasicMetrics{}
	tr := arbor.NewTreeWithObserver(listRoot{}, metrics)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	screen := tr.Rendering().(listScreen)
	screen.Append("1")
	screen.Append("2")
	screen.Append("3")

	waitFor(t, 2*time.Second, func() bool {
		return len(tr.Rendering().(listScreen).Items) == 3
	})
	require.Equal(t, []string{"1", "2", "3"}, tr.Rendering().(listScreen).Items)

	// One pass for the initial render, then exactly one per applied event.
	snap := metrics.Snapshot()
	require.Equal(t, int64(3), snap.EventsApplied)
	require.Equal(t, int64(4), snap.RenderPasses)
}

func TestUpdateWithSameIdentityKeepsState(t *testing.T) {
	t.Parallel()

	metrics := &arbor.BasicMetrics{}
	tr := arbor.NewTreeWithObserver(listRoot{}, metrics)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	tr.Rendering().(listScreen).Append("kept")
	waitFor(t, 2*time.Second, func() bool {
		return len(tr.Rendering().(listScreen).Items) == 1
	})

	tr.Update(listRoot{})
	waitFor(t, 2*time.Second, func() bool {
		return metrics.Snapshot().RenderPasses >= 3
	})
	require.Equal(t, []string{"kept"}, tr.Rendering().(listScreen).Items)
}

// workerRoot declares one keyed worker while Enabled, under an unchanging
// token, and records everything the worker delivers.
type workerRoot struct {
	Starts *atomic.Int64
}

type workerState struct {
	Enabled bool
	Bumps   int
	Got     []string
}

type workerScreen struct {
	State   workerState
	Bump    func()
	Disable func()
}

func (workerRoot) InitialState() any { return workerState{Enabled: true} }

func (workerRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (r workerRoot) Render(state any, ctx arbor.RenderContext) any {
	st := state.(workerState)
	sink := ctx.ActionSink()

	if st.Enabled {
		ctx.RunWorker("w", workers.FuncWorker{
			Token: "stable-token",
			Fn: func(wctx context.Context, emit func(any)) {
				r.Starts.Add(1)
				<-wctx.Done()
				// Deliveries after cancellation must be discarded.
				emit("late")
			},
		}, func(output any) arbor.Action {
			return arbor.ActionFunc(func(s any) (any, any) {
				cur := s.(workerState)
				cur.Got = append(cur.Got, output.(string))
				return cur, nil
			})
		})
	}

	return workerScreen{
		State: st,
		Bump: func() {
			sink.Send(arbor.ActionFunc(func(s any) (any, any) {
				cur := s.(workerState)
				cur.Bumps++
				return cur, nil
			}))
		},
		Disable: func() {
			sink.Send(arbor.ActionFunc(func(s any) (any, any) {
				cur := s.(workerState)
				cur.Enabled = false
				return cur, nil
			}))
		},
	}
}

func TestEquivalentWorkerStartsOnce(t *testing.T) {
	t.Parallel()

	starts := &atomic.Int64{}
	tr := arbor.NewTree(workerRoot{Starts: starts})
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	waitFor(t, 2*time.Second, func() bool { return starts.Load() == 1 })

	// Re-render several times; the running worker must be kept.
	screen := tr.Rendering().(workerScreen)
	screen.Bump()
	screen.Bump()
	screen.Bump()

	waitFor(t, 2*time.Second, func() bool {
		return tr.Rendering().(workerScreen).State.Bumps == 3
	})
	require.Equal(t, int64(1), starts.Load())
}

func TestDroppedWorkerKeyCancelsAndDiscardsLateOutput(t *testing.T) {
	t.Parallel()

	starts := &atomic.Int64{}
	metrics := &arbor.BasicMetrics{}
	tr := arbor.NewTreeWithObserver(workerRoot{Starts: starts}, metrics)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	waitFor(t, 2*time.Second, func() bool { return starts.Load() == 1 })

	tr.Rendering().(workerScreen).Disable()
	waitFor(t, 2*time.Second, func() bool {
		return !tr.Rendering().(workerScreen).State.Enabled
	})
	waitFor(t, 2*time.Second, func() bool {
		return metrics.Snapshot().LiveWorkers == 0
	})

	// The cancelled worker emits "late" on its way out; give it time to do
	// so, then verify nothing reached the state.
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tr.Rendering().(workerScreen).State.Got)
}

// emitterChild turns a poke into an output for its parent.
type emitterChild struct{}

type emitterScreen struct {
	Emit func()
}

func (emitterChild) InitialState() any { return nil }

func (emitterChild) MigrateState(prev arbor.Workflow, state any) any { return state }

func (emitterChild) Render(state any, ctx arbor.RenderContext) any {
	sink := ctx.ActionSink()
	return emitterScreen{
		Emit: func() {
			sink.Send(arbor.ActionFunc(func(s any) (any, any) {
				return s, "ping"
			}))
		},
	}
}

// forwardingRoot maps child outputs to a recorded receipt plus an output of
// its own, which bubbles to the tree's Outputs stream.
type forwardingRoot struct{}

type forwardingScreen struct {
	Received []string
	Child    emitterScreen
}

func (forwardingRoot) InitialState() any { return []string(nil) }

func (forwardingRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (forwardingRoot) Render(state any, ctx arbor.RenderContext) any {
	child := ctx.RenderChild(emitterChild{}, "emitter", func(output any) arbor.Action {
		return arbor.ActionFunc(func(s any) (any, any) {
			received := append(append([]string(nil), s.([]string)...), output.(string))
			return received, "pong:" + output.(string)
		})
	}).(emitterScreen)

	return forwardingScreen{Received: state.([]string), Child: child}
}

func TestOutputBubblesExactlyOnce(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(forwardingRoot{})
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	outputs := tr.Outputs()
	tr.Rendering().(forwardingScreen).Child.Emit()

	select {
	case out := <-outputs:
		require.Equal(t, "pong:ping", out)
	case <-time.After(2 * time.Second):
		t.Fatal("no output within 2s")
	}

	require.Equal(t, []string{"ping"}, tr.Rendering().(forwardingScreen).Received)

	// Exactly once: nothing else arrives.
	select {
	case out := <-outputs:
		t.Fatalf("unexpected second output: %v", out)
	case <-time.After(100 * time.Millisecond):
	}
}

// duplicateChildRoot renders the same (type, key) twice in one pass.
type duplicateChildRoot struct {
	Serials *atomic.Int64
}

func (duplicateChildRoot) InitialState() any { return nil }

func (duplicateChildRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (r duplicateChildRoot) Render(state any, ctx arbor.RenderContext) any {
	ctx.RenderChild(serialChild{Serials: r.Serials}, "dup", nil)
	ctx.RenderChild(serialChild{Serials: r.Serials}, "dup", nil)
	return nil
}

func TestDuplicateChildKeyPanics(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(duplicateChildRoot{Serials: &atomic.Int64{}})
	require.Panics(t, func() {
		_ = tr.Start(context.Background())
	})
}

// duplicateWorkerRoot registers the same worker key twice in one pass.
type duplicateWorkerRoot struct{}

func (duplicateWorkerRoot) InitialState() any { return nil }

func (duplicateWorkerRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (duplicateWorkerRoot) Render(state any, ctx arbor.RenderContext) any {
	idle := func(wctx context.Context) { <-wctx.Done() }
	ctx.RunSideEffect("dup", idle)
	ctx.RunSideEffect("dup", idle)
	return nil
}

func TestDuplicateWorkerKeyPanics(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(duplicateWorkerRoot{})
	require.Panics(t, func() {
		_ = tr.Start(context.Background())
	})
}

// contextLeakRoot leaks its render context through the rendering.
type contextLeakRoot struct{}

func (contextLeakRoot) InitialState() any { return nil }

func (contextLeakRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (contextLeakRoot) Render(state any, ctx arbor.RenderContext) any { return ctx }

func TestStaleRenderContextPanics(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(contextLeakRoot{})
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	leaked := tr.Rendering().(arbor.RenderContext)
	require.Panics(t, func() { leaked.ActionSink() })
	require.Panics(t, func() { leaked.RenderChild(contextLeakRoot{}, "x", nil) })
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(listRoot{})
	require.NotEmpty(t, tr.SessionID())
	require.NoError(t, tr.Start(context.Background()))

	// A second Start while running fails.
	require.Error(t, tr.Start(context.Background()))

	renderings := tr.Renderings()
	screen := tr.Rendering().(listScreen)

	tr.Stop()
	tr.Stop() // idempotent

	// Start after Stop fails.
	require.Error(t, tr.Start(context.Background()))

	// Subscriptions close when the tree stops.
	waitFor(t, 2*time.Second, func() bool {
		select {
		case _, ok := <-renderings:
			return !ok
		default:
			return false
		}
	})

	// Sinks captured before Stop drop their sends instead of panicking.
	require.NotPanics(t, func() { screen.Append("dropped") })
}

func TestStatefulWorkflowAdapter(t *testing.T) {
	t.Parallel()

	type counterScreen struct {
		Count int
		Inc   func()
	}

	counter := func(name string, start int) arbor.StatefulWorkflow[int, int, counterScreen] {
		return arbor.StatefulWorkflow[int, int, counterScreen]{
			Name:  name,
			Props: start,
			Init:  func(start int) int { return start },
			Body: func(start, count int, ctx arbor.RenderContext) counterScreen {
				sink := ctx.ActionSink()
				return counterScreen{
					Count: count,
					Inc: func() {
						sink.Send(arbor.TypedAction(func(s int) (int, any) {
							return s + 1, nil
						}))
					},
				}
			},
		}
	}

	// Two adapters with the same instantiation but different names must be
	// distinct node types, even under the same sibling key.
	root := arbor.StatefulWorkflow[any, any, map[string]counterScreen]{
		Name: "root",
		Body: func(_, _ any, ctx arbor.RenderContext) map[string]counterScreen {
			return map[string]counterScreen{
				"left":  ctx.RenderChild(counter("left", 10), "c", nil).(counterScreen),
				"right": ctx.RenderChild(counter("right", 20), "c", nil).(counterScreen),
			}
		},
	}

	tr := arbor.NewTree(root)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	screens := tr.Rendering().(map[string]counterScreen)
	require.Equal(t, 10, screens["left"].Count)
	require.Equal(t, 20, screens["right"].Count)

	screens["left"].Inc()
	waitFor(t, 2*time.Second, func() bool {
		return tr.Rendering().(map[string]counterScreen)["left"].Count == 11
	})
	require.Equal(t, 20, tr.Rendering().(map[string]counterScreen)["right"].Count)
}

// limitRoot re-renders a capped child with its current limit as props.
type limitRoot struct{ Limit int }

func (limitRoot) InitialState() any                               { return nil }
func (limitRoot) MigrateState(prev arbor.Workflow, state any) any { return state }

func (r limitRoot) Render(state any, ctx arbor.RenderContext) any {
	return ctx.RenderChild(cappedChild(r.Limit), "c", nil)
}

func cappedChild(limit int) arbor.StatefulWorkflow[int, int, int] {
	return arbor.StatefulWorkflow[int, int, int]{
		Name:  "capped",
		Props: limit,
		Init:  func(limit int) int { return limit },
		Migrate: func(prevLimit, limit, state int) int {
			if state > limit {
				return limit
			}
			return state
		},
		Body: func(limit, state int, ctx arbor.RenderContext) int { return state },
	}
}

func TestStatefulWorkflowMigratesOnPropsChange(t *testing.T) {
	t.Parallel()

	tr := arbor.NewTree(limitRoot{Limit: 10})
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	require.Equal(t, 10, tr.Rendering().(int))

	// Same identity, new props: the child's state is migrated, not rebuilt.
	tr.Update(limitRoot{Limit: 4})
	waitFor(t, 2*time.Second, func() bool {
		return tr.Rendering().(int) == 4
	})
}
