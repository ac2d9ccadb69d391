package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// JournalObserver appends a TreeEvent to a JournalStore for every observer
// callback. Append failures are logged and otherwise ignored: the journal is
// diagnostic, and must never influence tree semantics.
type JournalObserver struct {
	store  JournalStore
	logger *slog.Logger
}

// NewJournalObserver creates an Observer that records tree history in store.
// If logger is nil, slog.Default() is used for append failures.
func NewJournalObserver(store JournalStore, logger *slog.Logger) *JournalObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalObserver{store: store, logger: logger}
}

var _ Observer = (*JournalObserver)(nil)

func (j *JournalObserver) append(ctx context.Context, ev TreeEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := j.store.AppendEvent(ctx, ev); err != nil {
		j.logger.WarnContext(ctx, "journal_append_failed",
			slog.String("session_id", ev.SessionID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

func (j *JournalObserver) OnTreeStarted(ctx context.Context, sessionID string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventTreeStarted})
}

func (j *JournalObserver) OnTreeStopped(ctx context.Context, sessionID string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventTreeStopped})
}

func (j *JournalObserver) OnRenderPassStart(ctx context.Context, sessionID string, pass int64) {
	j.append(ctx, TreeEvent{
		SessionID: sessionID,
		Type:      EventRenderStarted,
		Detail:    fmt.Sprintf("pass=%d", pass),
	})
}

func (j *JournalObserver) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	j.append(ctx, TreeEvent{
		SessionID: sessionID,
		Type:      EventRenderCompleted,
		Detail:    fmt.Sprintf("pass=%d duration=%s", pass, d),
	})
}

func (j *JournalObserver) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventApplied, NodePath: nodePath})
}

func (j *JournalObserver) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventDiscarded, NodePath: nodePath})
}

func (j *JournalObserver) OnOutput(ctx context.Context, sessionID string, output any) {
	j.append(ctx, TreeEvent{
		SessionID: sessionID,
		Type:      EventOutput,
		Detail:    fmt.Sprintf("%T", output),
	})
}

func (j *JournalObserver) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventNodeCreated, NodePath: nodePath})
}

func (j *JournalObserver) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventNodeTornDown, NodePath: nodePath})
}

func (j *JournalObserver) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventWorkerStarted, NodePath: nodePath, Key: key})
}

func (j *JournalObserver) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	j.append(ctx, TreeEvent{SessionID: sessionID, Type: EventWorkerStopped, NodePath: nodePath, Key: key})
}
