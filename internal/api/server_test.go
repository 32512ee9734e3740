package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-remote/internal/bridge"
	"vehicle-remote/internal/core"
	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/storage"
	"vehicle-remote/internal/types"
)

type fakeController struct {
	bridge  *bridge.Bridge
	sendErr error

	mu   sync.Mutex
	sent []protocol.Intent
}

func (f *fakeController) Send(ctx context.Context, intent protocol.Intent) error {
	if _, err := protocol.Encode(intent); err != nil {
		return &core.SendError{Err: err}
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, intent)
	f.mu.Unlock()
	if d, ok := intent.(protocol.Drive); ok {
		f.bridge.ApplyLocal(types.DriveCommanded{Direction: d.Direction})
	}
	return nil
}

func (f *fakeController) Bridge() core.StateReader { return f.bridge }

func (f *fakeController) Info() core.Info {
	return core.Info{ID: "session-1", Transport: "sim", State: types.StateRunning, Mode: bridge.ModePush}
}

type fakeLog struct {
	records []storage.CommandRecord
	limit   int
}

func (f *fakeLog) RecentCommands(limit int) ([]storage.CommandRecord, error) {
	f.limit = limit
	return f.records, nil
}

func newTestServer(t *testing.T, journal CommandLog) (*Server, *fakeController) {
	t.Helper()
	l := logger.NewLogger(nil, logger.LogLevelNone)
	ctl := &fakeController{bridge: bridge.New(bridge.ModePush, l)}
	return NewServer("", ctl, journal, l), ctl
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStateEndpoint(t *testing.T) {
	srv, ctl := newTestServer(t, nil)
	ctl.bridge.HandleStatus([]byte{protocol.TagProximity, 0x2C, 0x01})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Seq)
	assert.Equal(t, uint16(300), resp.State.ProximityCm)
}

func TestCommandEndpoint(t *testing.T) {
	srv, ctl := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/command", `{"type":"drive","direction":"forward-left"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.DirectionForwardLeft, resp.State.Direction)
	require.Len(t, ctl.sent, 1)
	assert.Equal(t, protocol.Drive{Direction: types.DirectionForwardLeft}, ctl.sent[0])
}

func TestCommandEndpointErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		sendErr error
		want    int
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest},
		{"unknown type", `{"type":"honk"}`, nil, http.StatusBadRequest},
		{"bad direction", `{"type":"drive","direction":"up"}`, nil, http.StatusBadRequest},
		{"speed without percent", `{"type":"speed"}`, nil, http.StatusBadRequest},
		{"not running", `{"type":"aeb","enabled":true}`, &core.SendError{Err: core.ErrNotRunning}, http.StatusServiceUnavailable},
		{"transport failure", `{"type":"fault","action":"estop"}`, &core.SendError{Err: errors.New("broken pipe")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctl := newTestServer(t, nil)
			ctl.sendErr = tt.sendErr
			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/command", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestCommandsEndpoint(t *testing.T) {
	journal := &fakeLog{records: []storage.CommandRecord{{ID: "a", Name: "Drive"}}}
	srv, _ := newTestServer(t, journal)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/commands?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, journal.limit)

	var recs []storage.CommandRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/commands?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandsEndpointWithoutJournal(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/commands", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "session-1", info["id"])
	assert.Equal(t, "sim", info["transport"])
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	srv, ctl := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The first message is the current snapshot, sent after subscribing.
	var first stateResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(0), first.Seq)

	ctl.bridge.HandleStatus([]byte{protocol.TagAebState, 0x01})

	var next stateResponse
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, uint64(1), next.Seq)
	assert.True(t, next.State.AebEnabled)
}
