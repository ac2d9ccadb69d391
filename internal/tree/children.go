package tree

import (
	"fmt"

	"github.com/petrijr/arbor/pkg/api"
)

// childKey is the sole identity used to diff a node's children between
// consecutive render passes.
type childKey struct {
	id  identity
	key string
}

// childRegistry reconciles one node's children across render passes: reuse
// by (type, key), create on first appearance, tear down on disappearance.
// Mutated only during the owner's own render pass, on the update loop.
type childRegistry struct {
	owner    *node
	children map[childKey]*node
	seen     map[childKey]bool
}

func newChildRegistry(owner *node) childRegistry {
	return childRegistry{
		owner:    owner,
		children: make(map[childKey]*node),
	}
}

func (r *childRegistry) beginPass() {
	r.seen = make(map[childKey]bool, len(r.children))
}

// renderChild resolves the node for (def, key) and renders it. A reused node
// keeps its state (migrated through def.MigrateState inside render); a new
// node starts from def.InitialState.
func (r *childRegistry) renderChild(def api.Workflow, key string, onOutput api.OutputHandler) any {
	ck := childKey{id: identityOf(def), key: key}
	if r.seen[ck] {
		panic(fmt.Sprintf(
			"arbor: child %s rendered twice under key %q in one render pass of %s; sibling keys must be unique per (type, key)",
			ck.id, key, r.owner.path,
		))
	}
	r.seen[ck] = true

	child, ok := r.children[ck]
	if !ok {
		child = newNode(r.owner.tree, r.owner, r.owner.path+"/"+childPathPart(def, key))
		r.children[ck] = child
	}
	child.outputHandler = onOutput

	return child.render(def)
}

// endPass tears down every child that existed in the previous pass but was
// not rendered in this one.
func (r *childRegistry) endPass() {
	for ck, child := range r.children {
		if !r.seen[ck] {
			child.tearDown()
			delete(r.children, ck)
		}
	}
	r.seen = nil
}

// tearDownAll recursively tears down all children. Used when the owner
// itself is torn down.
func (r *childRegistry) tearDownAll() {
	for ck, child := range r.children {
		child.tearDown()
		delete(r.children, ck)
	}
}
