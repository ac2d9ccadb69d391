// Package devserver exposes a read-only HTTP surface for inspecting a
// running workflow tree: the latest rendering snapshot, the journal, a
// Prometheus endpoint, and a WebSocket stream of tree events.
//
// The server observes the tree through the standard Observer interface and
// never feeds anything back into it, so attaching it cannot change runtime
// behavior. Renderings are serialized with encoding/json; renderings meant
// for remote inspection should therefore be JSON-marshalable (sinks and
// other callbacks are skipped via the usual json tags or simply omitted
// from the inspectable parts of a rendering).
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petrijr/arbor/pkg/api"
)

// Config describes how to construct a Server.
type Config struct {
	// Tree is the tree under inspection. Required.
	Tree api.Tree

	// Observer, if set, is the stream observer already registered on the
	// tree; the server binds it and serves its WebSocket stream. If nil,
	// the /ws endpoint accepts connections but carries only pings.
	Observer *Observer

	// Journal, if set, enables the /events listing.
	Journal api.JournalStore

	// Metrics, if set, is mounted at /metrics (typically promhttp.Handler()).
	Metrics http.Handler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server serves the inspection endpoints. Mount Handler() into any HTTP
// server.
type Server struct {
	tree    api.Tree
	journal api.JournalStore
	logger  *slog.Logger
	obs     *Observer
	router  chi.Router
}

// New creates a Server for the given config.
func New(cfg Config) *Server {
	if cfg.Tree == nil {
		panic("arbor: devserver requires a tree")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = NewObserver()
	}
	obs.bind(cfg.Tree, logger)

	s := &Server{
		tree:    cfg.Tree,
		journal: cfg.Journal,
		logger:  logger,
		obs:     obs,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/rendering", s.handleRendering)
	r.Get("/events", s.handleEvents)
	r.Get("/ws", s.handleWebSocket)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	s.router = r

	return s
}

// Handler returns the HTTP handler with all inspection routes.
func (s *Server) Handler() http.Handler { return s.router }

// Close disconnects all WebSocket clients.
func (s *Server) Close() { s.obs.hub.close() }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("devserver_write_failed", slog.Any("error", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"session_id": s.tree.SessionID(),
	})
}

func (s *Server) handleRendering(w http.ResponseWriter, r *http.Request) {
	rendering := s.tree.Rendering()

	data, err := json.Marshal(rendering)
	if err != nil {
		// Renderings are host-defined; fall back to a descriptive string
		// rather than failing the snapshot entirely.
		s.writeJSON(w, http.StatusOK, map[string]any{
			"session_id": s.tree.SessionID(),
			"error":      "rendering is not JSON-marshalable: " + err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.tree.SessionID(),
		"rendering":  json.RawMessage(data),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no journal configured",
		})
		return
	}

	events, err := s.journal.ListEvents(r.Context(), s.tree.SessionID())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.tree.SessionID(),
		"events":     events,
	})
}
