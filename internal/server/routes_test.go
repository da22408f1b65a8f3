package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pintr/p2p-videocall/internal/protocol"
	"github.com/pintr/p2p-videocall/internal/signaling"
)

func startRelay(t *testing.T, allowedOrigins []string) *httptest.Server {
	t.Helper()
	hub := signaling.NewHub(zerolog.Nop(), nil, signaling.Options{})
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(NewRouter(hub, allowedOrigins, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHealthEndpoint(t *testing.T) {
	srv := startRelay(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "healthy")
}

func TestWebsocketJoinRoundTrip(t *testing.T) {
	srv := startRelay(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	join, err := protocol.NewMessage(protocol.TypeJoin, protocol.JoinPayload{
		RoomID: "round-trip-room",
		UserID: "u1",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(join))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply protocol.Message
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, protocol.TypeJoined, reply.Type)

	var p protocol.JoinedPayload
	require.NoError(t, reply.DecodePayload(&p))
	assert.Equal(t, "u1", p.User.ID)
	assert.Equal(t, "round-trip-room", p.Room.ID)
	assert.True(t, p.IsCreator)
}

func TestOriginAllowList(t *testing.T) {
	srv := startRelay(t, []string{"https://call.example.com"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{
		"Origin": []string{"https://evil.example.com"},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{
		"Origin": []string{"https://call.example.com"},
	})
	require.NoError(t, err)
	conn.Close()
}

func TestStopClosesClientConnections(t *testing.T) {
	hub := signaling.NewHub(zerolog.Nop(), nil, signaling.Options{})
	go hub.Run()

	srv := httptest.NewServer(NewRouter(hub, nil, zerolog.Nop()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	join, err := protocol.NewMessage(protocol.TypeJoin, protocol.JoinPayload{RoomID: "r1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(join))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply protocol.Message
	require.NoError(t, conn.ReadJSON(&reply))

	hub.Stop()

	// the relay closes the transport; the client must see the close, not a
	// read timeout
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.False(t, os.IsTimeout(err))

	// stopping twice is safe
	hub.Stop()

	// connections arriving after shutdown are turned away promptly
	late, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
	assert.False(t, os.IsTimeout(err))
}

func TestEmptyAllowListAcceptsAnyOrigin(t *testing.T) {
	srv := startRelay(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{
		"Origin": []string{"https://anywhere.example.com"},
	})
	require.NoError(t, err)
	conn.Close()
}
