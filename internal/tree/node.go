package tree

import (
	"fmt"
	"reflect"

	"github.com/petrijr/arbor/pkg/api"
)

// identity is a workflow definition's diff identity: its concrete Go type,
// refined by api.Named when implemented.
type identity struct {
	typ  reflect.Type
	name string
}

func identityOf(w api.Workflow) identity {
	id := identity{typ: reflect.TypeOf(w)}
	if n, ok := w.(api.Named); ok {
		id.name = n.WorkflowName()
	}
	return id
}

func sameIdentity(a, b api.Workflow) bool {
	return identityOf(a) == identityOf(b)
}

func (id identity) String() string {
	if id.name != "" {
		return id.name
	}
	return id.typ.String()
}

// node is the live runtime instance of one workflow definition. It owns the
// definition's state exclusively: the state is read and replaced only on the
// tree's update loop, during this node's own render or event application.
//
// Lifecycle: created the first pass its (type, key) appears, re-rendered in
// place while it keeps appearing, torn down the first pass it does not.
type node struct {
	tree   *tree
	parent *node
	path   string

	def         api.Workflow
	state       any
	initialized bool
	tornDown    bool

	// outputHandler maps this node's outputs to parent actions. Refreshed
	// by the parent on every pass; nil at the root and for output-less
	// children.
	outputHandler api.OutputHandler

	sink     nodeSink
	children childRegistry
	effects  effectRegistry
}

func newNode(t *tree, parent *node, path string) *node {
	n := &node{
		tree:   t,
		parent: parent,
		path:   path,
	}
	n.sink = nodeSink{n: n}
	n.children = newChildRegistry(n)
	n.effects = newEffectRegistry(n)

	ctx := t.runCtx
	if ctx != nil {
		t.observer.OnNodeCreated(ctx, t.sessionID, path)
	}
	return n
}

// render runs exactly one render pass for this node: migrate or build state,
// invoke the definition's Render, then reconcile children and effects
// against the previous pass. Called only on the update loop.
func (n *node) render(def api.Workflow) any {
	if n.tornDown {
		panic("arbor: render of a torn-down node: " + n.path)
	}

	if n.initialized {
		n.state = def.MigrateState(n.def, n.state)
	} else {
		n.state = def.InitialState()
		n.initialized = true
	}
	n.def = def

	rc := &renderContext{n: n, valid: true}
	n.children.beginPass()
	n.effects.beginPass()

	rendering := def.Render(n.state, rc)

	// The context dies with the pass; captured sinks stay valid.
	rc.valid = false

	n.children.endPass()
	n.effects.endPass()

	return rendering
}

// apply runs one action against this node's state. A non-nil output bubbles
// to the parent as a further action within the same logical step, or to the
// tree's output stream at the root.
func (n *node) apply(a api.Action) {
	state, out := a.Apply(n.state)
	n.state = state
	if out == nil {
		return
	}
	if n.parent == nil {
		n.tree.publishOutput(out)
		return
	}
	if n.outputHandler == nil {
		return
	}
	if act := n.outputHandler(out); act != nil {
		n.parent.apply(act)
	}
}

// tearDown cancels this node's effects and recursively tears down its
// children before returning. Idempotent. Events delivered afterwards are
// discarded by the loop.
func (n *node) tearDown() {
	if n.tornDown {
		return
	}
	n.tornDown = true

	n.effects.cancelAll()
	n.children.tearDownAll()
	n.state = nil

	t := n.tree
	ctx := t.runCtx
	if ctx != nil {
		t.observer.OnNodeTornDown(ctx, t.sessionID, n.path)
	}
}

// nodeSink delivers actions to its node through the tree's serialized event
// loop. Safe from any goroutine, valid across render passes.
type nodeSink struct {
	n *node
}

func (s nodeSink) Send(a api.Action) {
	if a == nil {
		return
	}
	s.n.tree.enqueue(s.n, a)
}

func childPathPart(def api.Workflow, key string) string {
	return fmt.Sprintf("%s:%s", identityOf(def), key)
}
