// internal/websocket/session.go
// Per-socket session: authenticated via ticket, bound to one match, pumping
// frames between the socket and the match's fan-out endpoint

package websocket

import (
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nharan/TournamentRPS/internal/game"
	"github.com/nharan/TournamentRPS/internal/match"
	"github.com/nharan/TournamentRPS/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

// Session is one attached socket, bound to (participant, match) by its ticket
type Session struct {
	conn     *websocket.Conn
	registry *match.Registry
	endpoint *match.Endpoint
	did      string
	matchID  string
	done     chan struct{}
	logger   *log.Logger
}

// readPump pumps inbound frames from the socket into the match engine
func (s *Session) readPump() {
	defer func() {
		s.registry.Detach(s.matchID, s.endpoint)
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Printf("session %s: read error: %v", s.did, err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			s.sendError(protocol.CodeUnsupported, "binary not supported")
			continue
		}

		s.dispatch(data)
	}
}

// dispatch routes one inbound text frame
func (s *Session) dispatch(data []byte) {
	msg, err := protocol.ParseClient(data)
	if err != nil {
		s.logger.Printf("session %s: %v", s.did, err)
		s.sendError(protocol.CodeBadRequest, "invalid message")
		return
	}

	switch frame := msg.(type) {
	case *protocol.Heartbeat:
		s.sendError(protocol.CodeOK, "pong")

	case *protocol.ReadyForRound:
		// Bootstrapping flow that skips the queue: echo a fabricated
		// assignment and start the ticketed match if it hasn't started.
		s.enqueue(protocol.MustMarshal(protocol.Assign{
			Type:    protocol.TypeAssign,
			MatchID: fmt.Sprintf("%s_%d", frame.TID, frame.Round),
			Role:    "P1",
			Peer:    protocol.Peer{DID: "did:plc:peer", Handle: "opponent.example"},
			RTC:     protocol.RTCConfig{Turns: []string{}},
		}))
		s.registry.StartMatch(s.matchID)

	case *protocol.SdpOffer, *protocol.SdpAnswer, *protocol.Ice:
		// Pure relay: the payload body is never parsed or validated.
		s.registry.Relay(s.matchID, data)

	case *protocol.CommitHashes:
		s.registry.StoreCommits(s.matchID, s.did, frame.Hashes)

	case *protocol.Reveal:
		move, err := game.ParseMove(frame.Move)
		if err != nil {
			s.sendError(protocol.CodeBadRequest, "invalid move")
			return
		}
		s.registry.HandleReveal(s.matchID, s.did, frame.Turn, move)

	default:
		s.sendError(protocol.CodeUnimplemented, "not yet implemented")
	}
}

// writePump pumps fan-out frames from the match to the socket
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.endpoint.Frames():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue routes a session-local frame through the endpoint so it shares
// the per-endpoint FIFO with arbiter fan-out
func (s *Session) enqueue(frame []byte) {
	if !s.endpoint.Enqueue(frame) {
		s.logger.Printf("session %s: dropped frame, queue full", s.did)
	}
}

func (s *Session) sendError(code, msg string) {
	s.enqueue(protocol.MustMarshal(protocol.NewError(code, msg)))
}
