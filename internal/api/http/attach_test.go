package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yahook/mcp-terminal/internal/api/middleware"
)

func dialAttach(t *testing.T, env *testEnv, sessionID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	return dialAttachFrom(t, env, sessionID, "")
}

func dialAttachFrom(t *testing.T, env *testEnv, sessionID, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	var header http.Header
	if origin != "" {
		header = http.Header{"Origin": []string{origin}}
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + sessionID + "/attach"
	return websocket.DefaultDialer.Dial(url, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) attachMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg attachMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestAttach_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := dialAttach(t, env, "missing")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttach_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	sessionID, err := env.manager.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	conn, resp, err := dialAttachFrom(t, env, sessionID, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, conn)

	conn, _, err = dialAttachFrom(t, env, sessionID, "http://localhost:3000")
	require.NoError(t, err)
	conn.Close()
}

func TestAttach_UpgraderChecksOrigin(t *testing.T) {
	upgrader := newUpgrader(middleware.NewCORSConfig([]string{"https://app.example"}))

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8765/sessions/x/attach", nil)
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://127.0.0.1:8765")
	assert.True(t, upgrader.CheckOrigin(req), "same host")
}

func TestAttach_StreamsInputAndOutput(t *testing.T) {
	env := newTestEnv(t)
	sessionID, err := env.manager.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)
	proc := env.opener.Last()

	conn, _, err := dialAttach(t, env, sessionID)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(attachMessage{Type: "input", Data: "echo hi\n"}))
	require.Eventually(t, func() bool { return proc.Input() == "echo hi\n" },
		2*time.Second, 5*time.Millisecond)

	proc.Emit("hi\r\n")
	msg := readFrame(t, conn)
	assert.Equal(t, "output", msg.Type)
	assert.Equal(t, "hi\n", msg.Data)
	require.NotNil(t, msg.Alive)
	assert.True(t, *msg.Alive)

	require.NoError(t, conn.WriteJSON(attachMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(attachMessage{Type: "resize"}))
	reply := readFrame(t, conn)
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Message, "unknown message type")

	proc.Exit(0)
	for {
		msg := readFrame(t, conn)
		if msg.Type == "exit" {
			assert.Equal(t, "shell exited", msg.Message)
			break
		}
		require.Equal(t, "output", msg.Type)
	}
}

func TestAttach_SessionClosedElsewhere(t *testing.T) {
	env := newTestEnv(t)
	sessionID, err := env.manager.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	conn, _, err := dialAttach(t, env, sessionID)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, env.manager.CloseSession(sessionID))

	msg := readFrame(t, conn)
	assert.Equal(t, "exit", msg.Type)
	assert.Equal(t, "session closed", msg.Message)
}
