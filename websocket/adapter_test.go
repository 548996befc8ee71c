package websocket

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomrelay/auth"
	"roomrelay/domain"
	"roomrelay/hub"
	"roomrelay/protocol"
)

const (
	orgID  = "550e8400-e29b-41d4-a716-446655440000"
	userID = "550e8400-e29b-41d4-a716-446655440001"
	roomID = "550e8400-e29b-41d4-a716-446655440002"
)

type testServer struct {
	registry *hub.Hub
	url      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	jwtVerifier, err := auth.NewJWTVerifier("0123456789abcdef0123456789abcdef", 0)
	require.NoError(t, err)

	registry := hub.New()
	handler := protocol.NewHandler(registry, auth.NewChain(jwtVerifier, true))
	upgrader := &websocket.Upgrader{}

	srv := httptest.NewServer(Serve(upgrader, handler, 16))
	t.Cleanup(srv.Close)

	return &testServer{
		registry: registry,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	welcome := readJSON(t, ws)
	require.Equal(t, "WELCOME", welcome["type"])
	require.Equal(t, float64(domain.ProtocolVersion), welcome["v"])
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func writeText(t *testing.T, ws *websocket.Conn, s string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(s)))
}

func devToken(t *testing.T) string {
	t.Helper()
	token, err := auth.EncodeDevToken(domain.Identity{UserID: userID, OrgID: orgID, Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	return token
}

func TestConn_HelloSubscribeAndReceive(t *testing.T) {
	s := newTestServer(t)
	ws := s.dial(t)

	writeText(t, ws, fmt.Sprintf(`{"type":"HELLO","v":1,"token":%q}`, devToken(t)))
	connected := readJSON(t, ws)
	assert.Equal(t, "CONNECTED", connected["type"])
	assert.Equal(t, userID, connected["userId"])

	writeText(t, ws, fmt.Sprintf(`{"type":"SUBSCRIBE_ROOM","roomId":%q}`, roomID))
	subscribed := readJSON(t, ws)
	assert.Equal(t, "SUBSCRIBED", subscribed["type"])
	assert.Equal(t, float64(1), subscribed["count"])

	s.registry.Broadcast(orgID, roomID, []byte(`{"type":"ROOM_MESSAGE_CREATED","payload":{}}`))
	event := readJSON(t, ws)
	assert.Equal(t, "ROOM_MESSAGE_CREATED", event["type"])

	writeText(t, ws, `{"type":"NOPE"}`)
	assert.Equal(t, "Unknown message type", readJSON(t, ws)["error"])

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		connections, _ := s.registry.Stats()
		return connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConn_PolicyClose(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantReason string
	}{
		{
			name:       "invalid token",
			frame:      `{"type":"HELLO","v":1,"token":"nope"}`,
			wantReason: domain.CloseReasonInvalidToken,
		},
		{
			name:       "subscribe before hello",
			frame:      fmt.Sprintf(`{"type":"SUBSCRIBE_ROOM","roomId":%q}`, roomID),
			wantReason: domain.CloseReasonNotAuthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			ws := s.dial(t)

			writeText(t, ws, tt.frame)

			require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := ws.ReadMessage()
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, domain.CloseCodePolicyViolation, closeErr.Code)
			assert.Equal(t, tt.wantReason, closeErr.Text)
		})
	}
}

func TestConn_SendWithoutTransport(t *testing.T) {
	c := NewConn("c1", nil, nil, 1)

	require.NoError(t, c.Send([]byte("first")))
	assert.ErrorIs(t, c.Send([]byte("second")), ErrBufferFull)

	require.NoError(t, c.Close(websocket.CloseNormalClosure, ""))
	require.NoError(t, c.Close(websocket.CloseNormalClosure, ""))
	assert.ErrorIs(t, c.Send([]byte("third")), ErrClosed)
}
