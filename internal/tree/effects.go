package tree

import (
	"context"
	"fmt"
	"sync"

	"github.com/petrijr/arbor/pkg/api"
)

// workerEntry tracks one running worker. The handler is refreshed on every
// pass that re-registers the key, so late outputs are mapped through the
// most recent render's handler. The cancelled flag is flipped under mu
// before the scope is revoked, which is what suppresses deliveries racing
// with cancellation.
type workerEntry struct {
	worker api.Worker
	cancel context.CancelFunc

	mu        sync.Mutex
	handler   api.OutputHandler
	cancelled bool
}

func (e *workerEntry) setHandler(h api.OutputHandler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// actionFor maps a worker output to an action, or nil if the worker has been
// cancelled or the key was registered without a handler.
func (e *workerEntry) actionFor(out any) api.Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled || e.handler == nil {
		return nil
	}
	return e.handler(out)
}

func (e *workerEntry) markCancelled() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
	e.cancel()
}

// effectRegistry manages the keyed side-effect lifecycle for one node:
// start on first registration, keep running while an Equivalent worker stays
// registered, cancel when the key disappears. The key set is mutated only
// during the owner's own render pass.
type effectRegistry struct {
	owner   *node
	running map[string]*workerEntry
	seen    map[string]bool
}

func newEffectRegistry(owner *node) effectRegistry {
	return effectRegistry{
		owner:   owner,
		running: make(map[string]*workerEntry),
	}
}

func (r *effectRegistry) beginPass() {
	r.seen = make(map[string]bool, len(r.running))
}

func (r *effectRegistry) runWorker(key string, w api.Worker, onOutput api.OutputHandler) {
	if w == nil {
		panic("arbor: RunWorker requires a non-nil worker")
	}
	if r.seen[key] {
		panic(fmt.Sprintf(
			"arbor: worker key %q registered twice in one render pass of %s",
			key, r.owner.path,
		))
	}
	r.seen[key] = true

	if entry, ok := r.running[key]; ok {
		if w.Equivalent(entry.worker) {
			// Same logical work: the running instance keeps any in-flight
			// state, only the output mapping is refreshed.
			entry.setHandler(onOutput)
			return
		}
		r.stop(key, entry)
	}

	r.start(key, w, onOutput)
}

func (r *effectRegistry) start(key string, w api.Worker, onOutput api.OutputHandler) {
	t := r.owner.tree
	ctx, cancel := context.WithCancel(t.runCtx)

	entry := &workerEntry{
		worker:  w,
		cancel:  cancel,
		handler: onOutput,
	}
	r.running[key] = entry

	t.observer.OnWorkerStarted(t.runCtx, t.sessionID, r.owner.path, key)

	n := r.owner
	go w.Run(ctx, func(out any) {
		if a := entry.actionFor(out); a != nil {
			t.enqueue(n, a)
		}
	})
}

func (r *effectRegistry) stop(key string, entry *workerEntry) {
	entry.markCancelled()
	delete(r.running, key)

	t := r.owner.tree
	t.observer.OnWorkerStopped(t.runCtx, t.sessionID, r.owner.path, key)
}

// endPass cancels every worker whose key was not re-registered during this
// pass. Runs before the owner's render returns.
func (r *effectRegistry) endPass() {
	for key, entry := range r.running {
		if !r.seen[key] {
			r.stop(key, entry)
		}
	}
	r.seen = nil
}

// cancelAll revokes every running worker. Used on node teardown.
func (r *effectRegistry) cancelAll() {
	for key, entry := range r.running {
		r.stop(key, entry)
	}
}

// sideEffectWorker adapts a plain keyed side effect to the Worker contract.
// Any two side effects under the same key are equivalent: the key alone
// decides whether the running instance survives a pass.
type sideEffectWorker struct {
	fn func(ctx context.Context)
}

func (s sideEffectWorker) Run(ctx context.Context, _ func(any)) {
	s.fn(ctx)
}

func (s sideEffectWorker) Equivalent(other api.Worker) bool {
	_, ok := other.(sideEffectWorker)
	return ok
}
