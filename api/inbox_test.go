package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/store"
)

func seedSignals(t *testing.T, mem *store.Memory) {
	t.Helper()
	base := time.Now().UTC()
	for i, sig := range []*domain.Signal{
		{ID: "sig-1", UserID: "user-1", WorkflowID: "wf-1", Type: domain.SignalStatusUpdate, Data: map[string]any{"status": "started"}},
		{ID: "sig-2", UserID: "user-1", WorkflowID: "wf-1", Type: domain.SignalProgress, Data: map[string]any{"progress": 0.5, "step": "extract_text"}},
		{ID: "sig-3", UserID: "user-2", WorkflowID: "wf-2", Type: domain.SignalCompletion, Data: map[string]any{"result": "indexed"}},
	} {
		sig.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, mem.AppendSignal(context.Background(), sig))
	}
}

func TestListSignals(t *testing.T) {
	mem := store.NewMemory()
	seedSignals(t, mem)
	srv := NewServer(Options{Engine: &fakeOrchestrator{}, Store: mem})
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/inbox/signals?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSignalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	// Newest first.
	assert.Equal(t, "sig-2", resp.Signals[0].ID)

	rec = doJSON(t, mux, http.MethodGet, "/inbox/signals?user_id=user-1&signal_type=progress", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "sig-2", resp.Signals[0].ID)

	rec = doJSON(t, mux, http.MethodGet, "/inbox/signals", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	mem := store.NewMemory()
	seedSignals(t, mem)
	srv := NewServer(Options{Engine: &fakeOrchestrator{}, Store: mem})
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/inbox/signals/unread-count?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, int64(2), count["unread_count"])

	rec = doJSON(t, mux, http.MethodPost, "/inbox/signals/sig-1/read?user_id=user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user's signal id is invisible.
	rec = doJSON(t, mux, http.MethodPost, "/inbox/signals/sig-3/read?user_id=user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/inbox/signals/unread-count?user_id=user-1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, int64(1), count["unread_count"])
}

func TestMarkAllRead(t *testing.T) {
	mem := store.NewMemory()
	seedSignals(t, mem)
	srv := NewServer(Options{Engine: &fakeOrchestrator{}, Store: mem})
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/inbox/signals/mark-all-read?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp["updated"])

	// Second pass has nothing left to mark.
	rec = doJSON(t, mux, http.MethodPost, "/inbox/signals/mark-all-read?user_id=user-1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp["updated"])
}

func TestStreamDeliversBroadcasts(t *testing.T) {
	srv := NewServer(Options{Engine: &fakeOrchestrator{}, Store: store.NewMemory()})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/inbox/stream?user_id=user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, _ := readSSEEvent(t, reader)
	require.Equal(t, "connected", event)

	// The subscription is live once connected was sent.
	require.Equal(t, 1, srv.Registry().UserCount("user-1"))

	delivered := srv.Registry().Broadcast("user-1", []byte(`{"signal_type":"progress","workflow_id":"wf-1"}`))
	require.Equal(t, 1, delivered)

	event, data := readSSEEvent(t, reader)
	assert.Equal(t, "signal", event)
	assert.Contains(t, data, `"signal_type":"progress"`)
}

func TestStreamRequiresUser(t *testing.T) {
	srv := NewServer(Options{Engine: &fakeOrchestrator{}, Store: store.NewMemory()})
	mux := srv.Routes()

	rec := doJSON(t, mux, http.MethodGet, "/inbox/stream", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// readSSEEvent reads one "event:"/"data:" pair, skipping blank lines.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}
