package api

import (
	"context"
	"time"
)

// EventType identifies a tree journal event.
type EventType string

const (
	EventTreeStarted EventType = "tree.started"
	EventTreeStopped EventType = "tree.stopped"

	EventRenderStarted   EventType = "render.started"
	EventRenderCompleted EventType = "render.completed"

	EventApplied   EventType = "event.applied"
	EventDiscarded EventType = "event.discarded"
	EventOutput    EventType = "output.emitted"

	EventNodeCreated  EventType = "node.created"
	EventNodeTornDown EventType = "node.torndown"

	EventWorkerStarted EventType = "worker.started"
	EventWorkerStopped EventType = "worker.stopped"
)

// TreeEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type TreeEvent struct {
	SessionID string
	At        time.Time
	Type      EventType

	// Optional context.
	NodePath string
	Key      string

	// Small, human-oriented details (e.g. pass number, output summary).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string
}

// JournalStore is an append-only store of TreeEvents, used by the journal
// observer and read back by diagnostic tooling such as the devserver.
type JournalStore interface {
	AppendEvent(ctx context.Context, ev TreeEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]TreeEvent, error)
}
