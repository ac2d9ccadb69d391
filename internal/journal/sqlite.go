package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/arbor/pkg/api"
)

// SQLiteStore stores tree events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements the interface.
var _ api.JournalStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tree_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			node_path TEXT NOT NULL DEFAULT '',
			key TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_tree_events_session_id ON tree_events(session_id, id);
	`)
	return err
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev api.TreeEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tree_events (session_id, at, type, node_path, key, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID,
		at.UnixNano(),
		string(ev.Type),
		ev.NodePath,
		ev.Key,
		ev.Detail,
	)
	return err
}

func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string) ([]api.TreeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, at, type, node_path, key, detail
		FROM tree_events
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.TreeEvent
	for rows.Next() {
		var (
			id     string
			atN    int64
			typ    string
			path   string
			key    string
			detail string
		)
		if err := rows.Scan(&id, &atN, &typ, &path, &key, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.TreeEvent{
			SessionID: id,
			At:        time.Unix(0, atN),
			Type:      api.EventType(typ),
			NodePath:  path,
			Key:       key,
			Detail:    detail,
		})
	}
	return out, rows.Err()
}
