package arbor

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/arbor/internal/journal"
	"github.com/petrijr/arbor/internal/tree"
	"github.com/petrijr/arbor/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Workflow             = api.Workflow
	Named                = api.Named
	Action               = api.Action
	ActionFunc           = api.ActionFunc
	Sink                 = api.Sink
	OutputHandler        = api.OutputHandler
	RenderContext        = api.RenderContext
	Worker               = api.Worker
	Tree                 = api.Tree
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	JournalStore         = api.JournalStore
	JournalObserver      = api.JournalObserver
	TreeEvent            = api.TreeEvent
	EventType            = api.EventType
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	NewJournalObserver   = api.NewJournalObserver
)

// Tree constructors
// These wrap the internal/tree package so external callers never need to
// import internal packages.

// NewTree returns a Tree rooted at the given workflow definition. The tree
// does nothing until Start is called.
func NewTree(root Workflow) Tree {
	return tree.New(tree.Config{Root: root})
}

// NewTreeWithObserver returns a Tree with the given Observer attached.
func NewTreeWithObserver(root Workflow, obs Observer) Tree {
	return tree.New(tree.Config{Root: root, Observer: obs})
}

// NewTreeWithConfig returns a Tree with an observer and logger.
func NewTreeWithConfig(root Workflow, obs Observer, logger *slog.Logger) Tree {
	return tree.New(tree.Config{Root: root, Observer: obs, Logger: logger})
}

// Journal store constructors

// NewMemoryJournal returns an in-memory JournalStore, best for tests and
// short-lived sessions.
func NewMemoryJournal() JournalStore {
	return journal.NewMemoryStore()
}

// NewSQLiteJournal returns a JournalStore that appends tree events to a
// SQLite database, creating the schema if needed.
func NewSQLiteJournal(db *sql.DB) (JournalStore, error) {
	return journal.NewSQLiteStore(db)
}

// NewRedisJournal returns a JournalStore that appends tree events to Redis
// lists under the given key prefix (defaulting to "arbor:").
func NewRedisJournal(client *redis.Client, prefix string) JournalStore {
	return journal.NewRedisStore(client, prefix)
}
