// internal/websocket/handlers.go
// WebSocket connection handlers

package websocket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nharan/TournamentRPS/internal/match"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// HandleConnection upgrades a ticket-gated request and runs the session.
// The ticket middleware has already bound (participant, match) into the
// request context; an invalid or missing ticket never reaches this point.
func HandleConnection(registry *match.Registry, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		did := c.GetString("did")
		matchID := c.GetString("match_id")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Printf("failed to upgrade connection for %s: %v", did, err)
			return
		}

		endpoint := registry.Attach(matchID, did)
		session := &Session{
			conn:     conn,
			registry: registry,
			endpoint: endpoint,
			did:      did,
			matchID:  matchID,
			done:     make(chan struct{}),
			logger:   logger,
		}

		// Initialise the match on first attach: turn 1, deadline armed,
		// TURN_START to every current endpoint. Idempotent afterwards.
		registry.StartMatch(matchID)

		go session.writePump()
		go session.readPump()
	}
}
