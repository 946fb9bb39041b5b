// internal/api/admin_handlers.go
// Admin-only HTTP handlers

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nharan/TournamentRPS/internal/services"

	"github.com/gin-gonic/gin"
)

// HandleAdminReset clears a single match, one tournament, or everything
func HandleAdminReset(svc *services.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TID     string `json:"tid"`
			MatchID string `json:"match_id"`
		}
		// An absent body means "clear everything".
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		switch {
		case req.MatchID != "":
			cleared := 0
			if svc.Registry.Reset(req.MatchID) {
				cleared = 1
			}
			c.JSON(http.StatusOK, gin.H{"ok": true, "matches_cleared": cleared})

		case req.TID != "":
			matches := svc.Registry.ResetPrefix(req.TID + "-")
			assignments := svc.Pairing.ResetTournament(req.TID)
			c.JSON(http.StatusOK, gin.H{
				"ok":                  true,
				"matches_cleared":     matches,
				"assignments_cleared": assignments,
			})

		default:
			matches := svc.Registry.ResetAll()
			svc.Pairing.ResetAll()
			c.JSON(http.StatusOK, gin.H{"ok": true, "matches_cleared": matches})
		}
	}
}

// HandleAdminState reports registry and queue occupancy
func HandleAdminState(svc *services.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := svc.Registry.Counts()
		waiting, assignments, entrants := svc.Pairing.Counts()

		c.JSON(http.StatusOK, gin.H{
			"matches":       counts.Matches,
			"sessions":      counts.Sessions,
			"queue_waiting": waiting,
			"assignments":   assignments,
			"entrants":      entrants,
		})
	}
}
