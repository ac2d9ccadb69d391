package tree

import (
	"context"

	"github.com/petrijr/arbor/pkg/api"
)

// renderContext is the api.RenderContext implementation for exactly one
// render pass of exactly one node. It delegates to the node's child and
// effect registries and enforces the single-pass lifetime: any use after
// the pass returns panics.
type renderContext struct {
	n     *node
	valid bool
}

var _ api.RenderContext = (*renderContext)(nil)

func (rc *renderContext) check() {
	if !rc.valid {
		panic("arbor: render context used outside its render pass (node " + rc.n.path + ")")
	}
}

func (rc *renderContext) RenderChild(child api.Workflow, key string, onOutput api.OutputHandler) any {
	rc.check()
	if child == nil {
		panic("arbor: RenderChild requires a non-nil child workflow")
	}
	return rc.n.children.renderChild(child, key, onOutput)
}

func (rc *renderContext) ActionSink() api.Sink {
	rc.check()
	return rc.n.sink
}

func (rc *renderContext) RunWorker(key string, w api.Worker, onOutput api.OutputHandler) {
	rc.check()
	rc.n.effects.runWorker(key, w, onOutput)
}

func (rc *renderContext) RunSideEffect(key string, fn func(ctx context.Context)) {
	rc.check()
	if fn == nil {
		panic("arbor: RunSideEffect requires a non-nil function")
	}
	rc.n.effects.runWorker(key, sideEffectWorker{fn: fn}, nil)
}
