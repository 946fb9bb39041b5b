package websocket

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nharan/TournamentRPS/internal/match"
	"github.com/nharan/TournamentRPS/internal/middleware"
	"github.com/nharan/TournamentRPS/internal/ticket"
)

type wsHarness struct {
	server   *httptest.Server
	tickets  *ticket.Service
	registry *match.Registry
}

func newHarness(t *testing.T, turnDeadline time.Duration) *wsHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := log.New(io.Discard, "", 0)
	tickets := ticket.NewService("test-secret")
	registry := match.NewRegistry(turnDeadline, logger)

	router := gin.New()
	router.GET("/ws", middleware.RequireTicket(tickets), HandleConnection(registry, logger))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &wsHarness{server: srv, tickets: tickets, registry: registry}
}

func (h *wsHarness) wsURL(ticket string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?ticket=" + ticket
}

func (h *wsHarness) connect(t *testing.T, did, matchID string) *websocket.Conn {
	t.Helper()
	token, err := h.tickets.Issue(did, matchID)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL(token), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func awaitFrameType(t *testing.T, conn *websocket.Conn, frameType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn, time.Until(deadline))
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("timed out waiting for %s", frameType)
	return nil
}

func TestUpgradeRequiresValidTicket(t *testing.T) {
	h := newHarness(t, time.Hour)

	// Missing ticket.
	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Garbage ticket.
	_, resp, err = websocket.DefaultDialer.Dial(h.wsURL("not-a-ticket"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A ticket signed with a different secret.
	token, err := ticket.NewService("other-secret").Issue("did:plc:alice", "demo-a-b")
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(h.wsURL(token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestTicketBindsSessionToItsMatch(t *testing.T) {
	h := newHarness(t, time.Hour)

	// The attach target comes from the ticket's claims; a ticket for match
	// A lands in match A regardless of what the client intended.
	conn := h.connect(t, "did:plc:alice", "match-A")
	frame := awaitFrameType(t, conn, "TURN_START", time.Second)
	assert.Equal(t, "match-A", frame["match_id"])
	assert.Equal(t, 1, h.registry.Counts().Matches)
}

func TestHeartbeatGetsOKReply(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "did:plc:alice", "demo-a-b")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HEARTBEAT"}`)))

	frame := awaitFrameType(t, conn, "ERROR", time.Second)
	assert.Equal(t, "OK", frame["code"])
	assert.Equal(t, "pong", frame["msg"])
}

func TestBinaryFramesAreRejected(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "did:plc:alice", "demo-a-b")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	frame := awaitFrameType(t, conn, "ERROR", time.Second)
	assert.Equal(t, "UNSUPPORTED", frame["code"])
}

func TestMalformedFramesAreRejected(t *testing.T) {
	h := newHarness(t, time.Hour)
	conn := h.connect(t, "did:plc:alice", "demo-a-b")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"TELEPORT"}`)))

	frame := awaitFrameType(t, conn, "ERROR", time.Second)
	assert.Equal(t, "BAD_REQUEST", frame["code"])
}

func TestFullMatchOverSockets(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.registry.SetOrdering("demo-a-b", "did:plc:alice", "did:plc:bob", false)

	connA := h.connect(t, "did:plc:alice", "demo-a-b")
	connB := h.connect(t, "did:plc:bob", "demo-a-b")

	reveal := func(conn *websocket.Conn, turn int, move string) {
		frame := map[string]interface{}{
			"type": "REVEAL", "match_id": "demo-a-b",
			"turn": turn, "move_": move, "nonce": "n",
		}
		data, err := json.Marshal(frame)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}

	// P1 rock beats P2 scissors five times straight.
	for turn := 1; turn <= 5; turn++ {
		start := awaitFrameType(t, connA, "TURN_START", 2*time.Second)
		assert.Equal(t, float64(turn), start["turn"])
		assert.NotZero(t, start["deadline_ms_epoch"])
		awaitFrameType(t, connB, "TURN_START", 2*time.Second)

		reveal(connA, turn, "R")
		reveal(connB, turn, "S")

		resA := awaitFrameType(t, connA, "TURN_RESULT", 2*time.Second)
		resB := awaitFrameType(t, connB, "TURN_RESULT", 2*time.Second)
		assert.Equal(t, "P1", resA["result"])
		assert.Equal(t, resA["result"], resB["result"])
		assert.Equal(t, resA["p1_move"], resB["p1_move"])
	}

	endA := awaitFrameType(t, connA, "MATCH_RESULT", 2*time.Second)
	endB := awaitFrameType(t, connB, "MATCH_RESULT", 2*time.Second)
	assert.Equal(t, "P1", endA["winner"])
	assert.Equal(t, "P1", endB["winner"])
}

func TestRelayForwardsOpaqueFrames(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.registry.SetOrdering("demo-a-b", "did:plc:alice", "did:plc:bob", false)

	connA := h.connect(t, "did:plc:alice", "demo-a-b")
	connB := h.connect(t, "did:plc:bob", "demo-a-b")
	awaitFrameType(t, connA, "TURN_START", time.Second)
	awaitFrameType(t, connB, "TURN_START", time.Second)

	offer := `{"type":"SDP_OFFER","match_id":"demo-a-b","sdp":"v=0 fake-sdp"}`
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte(offer)))

	frame := awaitFrameType(t, connB, "SDP_OFFER", time.Second)
	assert.Equal(t, "v=0 fake-sdp", frame["sdp"])
}

func TestCloseTriggersOpponentLeft(t *testing.T) {
	h := newHarness(t, 30*time.Second)
	h.registry.SetOrdering("demo-a-b", "did:plc:alice", "did:plc:bob", false)

	connA := h.connect(t, "did:plc:alice", "demo-a-b")
	connB := h.connect(t, "did:plc:bob", "demo-a-b")
	awaitFrameType(t, connA, "TURN_START", time.Second)
	awaitFrameType(t, connB, "TURN_START", time.Second)

	require.NoError(t, connB.Close())

	frame := awaitFrameType(t, connA, "OPPONENT_LEFT", 2*time.Second)
	assert.Equal(t, "demo-a-b", frame["match_id"])
}
