package tree

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/petrijr/arbor/pkg/api"
)

// Config describes how to construct a tree.
// Only used inside this package; external callers use the arbor package
// constructors.
type Config struct {
	Root     api.Workflow
	Observer api.Observer
	Logger   *slog.Logger
}

type eventKind int

const (
	eventAction eventKind = iota
	eventUpdateRoot
)

// treeEvent is the envelope serialized through the update loop. Either an
// action targeting a node, or a root-definition swap from the host.
type treeEvent struct {
	kind   eventKind
	node   *node
	action api.Action
	root   api.Workflow
}

// tree owns the root node and the serialized update loop. All node state,
// child diffing, and effect reconciliation happen on a single goroutine;
// sinks and worker emissions from other goroutines only ever enqueue.
type tree struct {
	sessionID string
	observer  api.Observer
	logger    *slog.Logger

	rootDef api.Workflow
	root    *node

	events     topic.Topic[treeEvent]
	eventsProd topic.Producer[treeEvent]
	eventsCons topic.Consumer[treeEvent]

	renderings     topic.Topic[any]
	renderingsProd topic.Producer[any]
	outputs        topic.Topic[any]
	outputsProd    topic.Producer[any]

	// sendMu guards producer sends against closed topics after Stop.
	sendMu sync.RWMutex
	closed bool

	subMu     sync.Mutex
	consumers []interface{ Close() }

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// runCtx is the lifetime scope handed to workers; valid after Start.
	runCtx context.Context

	renderMu  sync.RWMutex
	rendering any

	pass     int64
	applying bool
}

// New constructs a Tree from the given config. The tree does nothing until
// Start is called.
func New(cfg Config) api.Tree {
	if cfg.Root == nil {
		panic("arbor: tree requires a root workflow")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := caravan.NewTopic[treeEvent]()
	renderings := caravan.NewTopic[any]()
	outputs := caravan.NewTopic[any]()

	return &tree{
		sessionID:      uuid.NewString(),
		observer:       obs,
		logger:         logger,
		rootDef:        cfg.Root,
		events:         events,
		eventsProd:     events.NewProducer(),
		eventsCons:     events.NewConsumer(),
		renderings:     renderings,
		renderingsProd: renderings.NewProducer(),
		outputs:        outputs,
		outputsProd:    outputs.NewProducer(),
	}
}

func (t *tree) SessionID() string { return t.sessionID }

func (t *tree) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return errors.New("arbor: tree already stopped")
	}
	if t.running {
		t.mu.Unlock()
		return errors.New("arbor: tree already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.runCtx = runCtx
	t.cancel = cancel
	t.running = true
	t.mu.Unlock()

	t.observer.OnTreeStarted(runCtx, t.sessionID)

	// Initial render pass happens before the loop starts consuming, so it
	// cannot overlap with event application.
	t.renderRoot(t.rootDef)

	t.wg.Add(1)
	go t.run()

	return nil
}

func (t *tree) Stop() {
	t.mu.Lock()
	if !t.running {
		t.stopped = true
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.running = false
	t.stopped = true
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	t.wg.Wait()

	// The loop has exited; teardown runs on this goroutine without any
	// possibility of a concurrent render pass.
	if t.root != nil {
		t.root.tearDown()
		t.root = nil
	}

	t.sendMu.Lock()
	t.closed = true
	t.sendMu.Unlock()

	t.eventsProd.Close()
	t.eventsCons.Close()
	t.renderingsProd.Close()
	t.outputsProd.Close()

	t.subMu.Lock()
	for _, c := range t.consumers {
		c.Close()
	}
	t.consumers = nil
	t.subMu.Unlock()

	t.observer.OnTreeStopped(context.Background(), t.sessionID)
}

func (t *tree) Update(root api.Workflow) {
	if root == nil {
		panic("arbor: Update requires a non-nil root workflow")
	}
	t.send(treeEvent{kind: eventUpdateRoot, root: root})
}

func (t *tree) Rendering() any {
	t.renderMu.RLock()
	defer t.renderMu.RUnlock()
	return t.rendering
}

func (t *tree) Renderings() <-chan any {
	return t.subscribe(t.renderings)
}

func (t *tree) Outputs() <-chan any {
	return t.subscribe(t.outputs)
}

func (t *tree) subscribe(top topic.Topic[any]) <-chan any {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	cons := top.NewConsumer()
	t.consumers = append(t.consumers, cons)
	return cons.Receive()
}

// send enqueues an event unless the tree has been stopped, in which case the
// event is dropped. Safe from any goroutine.
func (t *tree) send(ev treeEvent) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		return
	}
	t.eventsProd.Send() <- ev
}

// enqueue is the sink/worker entry point: deliver an action to a node
// through the serialized loop.
func (t *tree) enqueue(n *node, a api.Action) {
	t.send(treeEvent{kind: eventAction, node: n, action: a})
}

func (t *tree) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.runCtx.Done():
			return
		case ev, ok := <-t.eventsCons.Receive():
			if !ok {
				return
			}
			t.handle(ev)
		}
	}
}

// handle applies exactly one event and performs exactly one render pass.
func (t *tree) handle(ev treeEvent) {
	switch ev.kind {
	case eventUpdateRoot:
		t.renderRoot(ev.root)

	case eventAction:
		if ev.node.tornDown {
			t.observer.OnEventDiscarded(t.runCtx, t.sessionID, ev.node.path)
			return
		}
		t.applyEvent(ev.node, ev.action)
		t.renderRoot(t.rootDef)
	}
}

func (t *tree) applyEvent(n *node, a api.Action) {
	if t.applying {
		panic("arbor: reentrant event application")
	}
	t.applying = true
	defer func() { t.applying = false }()

	n.apply(a)
	t.observer.OnEventApplied(t.runCtx, t.sessionID, n.path)
}

// renderRoot reconciles the root against def and runs one render pass from
// it, then publishes the resulting rendering.
func (t *tree) renderRoot(def api.Workflow) {
	if t.root != nil && !sameIdentity(t.root.def, def) {
		t.root.tearDown()
		t.root = nil
	}
	if t.root == nil {
		t.root = newNode(t, nil, "/"+identityOf(def).String())
	}
	t.rootDef = def

	t.pass++
	ctx := t.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	t.observer.OnRenderPassStart(ctx, t.sessionID, t.pass)

	start := time.Now()
	rendering := t.root.render(def)
	t.observer.OnRenderPassCompleted(ctx, t.sessionID, t.pass, time.Since(start))

	t.renderMu.Lock()
	t.rendering = rendering
	t.renderMu.Unlock()

	t.publish(t.renderingsProd, rendering)
}

// publishOutput publishes an output emitted by the root workflow.
func (t *tree) publishOutput(out any) {
	ctx := t.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	t.observer.OnOutput(ctx, t.sessionID, out)
	t.publish(t.outputsProd, out)
}

func (t *tree) publish(prod topic.Producer[any], v any) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		return
	}
	prod.Send() <- v
}
