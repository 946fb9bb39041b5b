// internal/middleware/ticket.go
// Ticket gate for the WebSocket endpoint: validates the signed session
// ticket from the upgrade request's query and binds its claims to the
// request context

package middleware

import (
	"net/http"

	"github.com/nharan/TournamentRPS/internal/ticket"

	"github.com/gin-gonic/gin"
)

// RequireTicket refuses the upgrade with 401 unless a valid, unexpired
// ticket is present in the query string
func RequireTicket(tickets *ticket.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("ticket")
		if token == "" {
			c.String(http.StatusUnauthorized, "missing ticket")
			c.Abort()
			return
		}

		did, matchID, err := tickets.Verify(token)
		if err != nil {
			c.String(http.StatusUnauthorized, "invalid ticket")
			c.Abort()
			return
		}

		c.Set("did", did)
		c.Set("match_id", matchID)

		c.Next()
	}
}
