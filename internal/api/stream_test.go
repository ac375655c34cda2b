package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierNotifierRecordsStatusEvents(t *testing.T) {
	n := NewTierNotifier()
	assert.Nil(t, n.LastStatus())

	n.Broadcast(TierEvent{Type: EventViolation, JobID: "j1", Message: "p1 overall_rank: S+ without five S"})
	assert.Nil(t, n.LastStatus(), "violations are not a status")

	n.Broadcast(TierEvent{Type: EventProgress, JobID: "j1", Total: 4, Processed: 2, Top: []TierDTO{{ProductID: "p1"}}})
	status := n.LastStatus()
	require.NotNil(t, status)
	assert.Equal(t, EventProgress, status.Type)
	assert.Equal(t, 2, status.Processed)
	assert.Nil(t, status.Top)
	assert.False(t, status.Terminal())

	n.Broadcast(TierEvent{Type: EventViolation, JobID: "j1"})
	assert.Equal(t, EventProgress, n.LastStatus().Type)

	n.Broadcast(TierEvent{Type: EventComplete, JobID: "j1", Total: 4, Processed: 4, Top: []TierDTO{{ProductID: "p1"}}})
	status = n.LastStatus()
	require.NotNil(t, status)
	assert.True(t, status.Terminal())
	require.Len(t, status.Top, 1)
	status.Top[0].ProductID = "changed"
	assert.Equal(t, "p1", n.LastStatus().Top[0].ProductID, "callers get a copy")
}

func dialStream(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/tiers/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) TierEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event TierEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestTierStreamReplayAndJobFilter(t *testing.T) {
	srv, router := newTestServer(t)
	seedCatalog(t, srv)

	rec := doJSON(t, router, http.MethodPost, "/api/tiers/rebuild", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started StartRebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.Eventually(t, func() bool {
		status := srv.tierNotifier.LastStatus()
		return status != nil && status.Type == EventComplete
	}, 5*time.Second, 20*time.Millisecond)

	ts := httptest.NewServer(router)
	defer ts.Close()

	all := dialStream(t, ts, "")
	replayed := readEvent(t, all)
	assert.Equal(t, EventComplete, replayed.Type)
	assert.Equal(t, started.JobID, replayed.JobID)
	assert.Equal(t, 3, replayed.Processed)
	assert.Len(t, replayed.Top, 3, "a finished rebuild replays its top list")

	other := dialStream(t, ts, "?job=other")
	require.Eventually(t, func() bool { return srv.tierNotifier.Subscribers() == 2 }, 5*time.Second, 10*time.Millisecond)

	srv.tierNotifier.Broadcast(TierEvent{Type: EventStarted, JobID: "other", Total: 7})
	got := readEvent(t, other)
	assert.Equal(t, EventStarted, got.Type, "no replay of a different job")
	assert.Equal(t, "other", got.JobID)
	assert.Equal(t, 7, got.Total)

	got = readEvent(t, all)
	assert.Equal(t, "other", got.JobID)
}
