package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/arbor/internal/journal"
	"github.com/petrijr/arbor/pkg/api"
)

// fakeTree is a minimal api.Tree for endpoint tests; the devserver only ever
// reads from it.
type fakeTree struct {
	session   string
	rendering any
}

func (f *fakeTree) Start(ctx context.Context) error { return nil }
func (f *fakeTree) Stop()                           {}
func (f *fakeTree) Update(root api.Workflow)        {}
func (f *fakeTree) Rendering() any                  { return f.rendering }
func (f *fakeTree) Renderings() <-chan any          { return nil }
func (f *fakeTree) Outputs() <-chan any             { return nil }
func (f *fakeTree) SessionID() string               { return f.session }

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := New(Config{Tree: &fakeTree{session: "sess-1"}})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body map[string]string
	status := getJSON(t, ts.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "sess-1", body["session_id"])
}

func TestRenderingEndpoint(t *testing.T) {
	t.Parallel()

	tree := &fakeTree{
		session:   "sess-2",
		rendering: map[string]any{"count": float64(3)},
	}
	srv := New(Config{Tree: tree})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body struct {
		SessionID string         `json:"session_id"`
		Rendering map[string]any `json:"rendering"`
	}
	status := getJSON(t, ts.URL+"/rendering", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "sess-2", body.SessionID)
	require.Equal(t, tree.rendering, body.Rendering)
}

func TestRenderingEndpointNonMarshalable(t *testing.T) {
	t.Parallel()

	// Renderings routinely contain callbacks; the snapshot endpoint must
	// degrade instead of failing.
	srv := New(Config{Tree: &fakeTree{session: "s", rendering: func() {}}})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body map[string]any
	status := getJSON(t, ts.URL+"/rendering", &body)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["error"], "not JSON-marshalable")
}

func TestEventsEndpoint(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.AppendEvent(ctx, api.TreeEvent{
		SessionID: "sess-3",
		Type:      api.EventTreeStarted,
	}))
	require.NoError(t, store.AppendEvent(ctx, api.TreeEvent{
		SessionID: "sess-3",
		Type:      api.EventRenderCompleted,
		Detail:    "pass=1",
	}))

	srv := New(Config{Tree: &fakeTree{session: "sess-3"}, Journal: store})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body struct {
		SessionID string          `json:"session_id"`
		Events    []api.TreeEvent `json:"events"`
	}
	status := getJSON(t, ts.URL+"/events", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Events, 2)
	require.Equal(t, api.EventTreeStarted, body.Events[0].Type)
}

func TestEventsEndpointWithoutJournal(t *testing.T) {
	t.Parallel()

	srv := New(Config{Tree: &fakeTree{session: "s"}})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body map[string]string
	status := getJSON(t, ts.URL+"/events", &body)
	require.Equal(t, http.StatusNotFound, status)
}

func TestMetricsEndpointMounting(t *testing.T) {
	t.Parallel()

	mounted := New(Config{
		Tree: &fakeTree{session: "s"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
	defer mounted.Close()
	ts := httptest.NewServer(mounted.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bare := New(Config{Tree: &fakeTree{session: "s"}})
	defer bare.Close()
	ts2 := httptest.NewServer(bare.Handler())
	defer ts2.Close()

	resp2, err := http.Get(ts2.URL + "/metrics")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestWebSocketStreamsTreeEvents(t *testing.T) {
	t.Parallel()

	obs := NewObserver()
	tree := &fakeTree{session: "sess-ws", rendering: map[string]any{"n": float64(1)}}
	srv := New(Config{Tree: tree, Observer: obs})
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the hub a moment to register the client before broadcasting.
	require.Eventually(t, func() bool {
		srv.obs.hub.mu.Lock()
		defer srv.obs.hub.mu.Unlock()
		return len(srv.obs.hub.clients) == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	obs.OnEventApplied(ctx, "sess-ws", "/root")
	obs.OnRenderPassCompleted(ctx, "sess-ws", 1, time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first wsMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, api.EventApplied, first.Type)
	require.Equal(t, "/root", first.NodePath)

	var second wsMessage
	require.NoError(t, conn.ReadJSON(&second))
	require.Equal(t, api.EventRenderCompleted, second.Type)
	require.JSONEq(t, `{"n":1}`, string(second.Rendering))
}

func TestNewRequiresTree(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(Config{}) })
}
