package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux, err := newMux()
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads server messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func isState(msg ServerMessage) bool { return msg.Type == "state" && msg.Signals != nil }

func TestSession_ManualControlFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	// Long intervals keep the random generators out of the way.
	require.NoError(t, conn.WriteJSON(ClientMessage{
		Action: "init",
		Config: &DoorConfig{MotionInterval: 3600, ErrorInterval: 3600, CloseDelay: 3600},
	}))
	msg := readUntil(t, conn, isState)
	assert.NotEmpty(t, msg.SessionID)
	assert.False(t, msg.Signals.IsOpen)
	assert.Equal(t, "Auto", msg.Mode)
	assert.Equal(t, "Closed • Automatic Control", msg.View.StatusLine)
	assert.False(t, msg.View.DoorButtonEnabled)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "toggleDoor"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "manual override is not active")

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "toggleOverride"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return isState(m) && m.Mode == "Manual" })
	assert.True(t, msg.Signals.IsManualOverride)
	assert.Equal(t, "Enable Auto", msg.View.OverrideButton)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "toggleDoor"}))
	msg = readUntil(t, conn, func(m ServerMessage) bool { return isState(m) && m.Signals.IsOpen })
	assert.Equal(t, "Open • Manual Control", msg.View.StatusLine)
	assert.Equal(t, "Close Door", msg.View.DoorButton)
}

func TestSession_InvalidConfig(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Action: "init",
		Config: &DoorConfig{MotionThreshold: 1.5},
	}))
	msg := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "invalid config")
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "door_override_toggles_total")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
