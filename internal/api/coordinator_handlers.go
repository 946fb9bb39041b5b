// internal/api/coordinator_handlers.go
// Coordinator HTTP handlers: ticket minting, the drop-in queue and batch
// round pairing

package api

import (
	"net/http"

	"github.com/nharan/TournamentRPS/internal/pairing"
	"github.com/nharan/TournamentRPS/internal/ticket"
	"github.com/nharan/TournamentRPS/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleIssueTicket mints a signed session ticket for (participant, match)
func HandleIssueTicket(tickets *ticket.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DID     string `json:"did" binding:"required"`
			MatchID string `json:"match_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
		if err := utils.ValidateDID(req.DID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := tickets.Issue(req.DID, req.MatchID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue ticket"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ticket": token})
	}
}

func respondAssignment(c *gin.Context, a *pairing.Assignment) {
	if a == nil {
		c.JSON(http.StatusOK, gin.H{"status": "WAIT"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ASSIGN",
		"match_id": a.MatchID,
		"role":     a.Role,
		"peer":     a.Peer,
		"ticket":   a.Ticket,
	})
}

// HandleQueueReady enters a participant into the drop-in queue and returns
// WAIT or their Assignment
func HandleQueueReady(pairer *pairing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TID       string `json:"tid" binding:"required"`
			DID       string `json:"did" binding:"required"`
			Handle    string `json:"handle"`
			AIIfAlone bool   `json:"ai_if_alone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
		if err := utils.ValidateDID(req.DID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := utils.ValidateTournamentID(req.TID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a, err := pairer.QueueReady(req.TID, req.DID, req.Handle, req.AIIfAlone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pair"})
			return
		}
		respondAssignment(c, a)
	}
}

// HandleQueueCancel removes a participant from the queue and discards any
// prepared assignment
func HandleQueueCancel(pairer *pairing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DID string `json:"did" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		removed := pairer.Cancel(req.DID)
		c.JSON(http.StatusOK, gin.H{"ok": true, "removed": removed})
	}
}

// HandleRegister records a tournament entrant for later batch rounds
func HandleRegister(pairer *pairing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TID    string `json:"tid" binding:"required"`
			DID    string `json:"did" binding:"required"`
			Handle string `json:"handle"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		pairer.Register(req.TID, req.DID, req.Handle)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleStartRound batch-pairs the registered roster of a tournament
func HandleStartRound(pairer *pairing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TID   string `json:"tid" binding:"required"`
			Round int    `json:"round" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		pairs, err := pairer.StartRound(req.TID, req.Round)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start round"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "pairs": pairs})
	}
}

// HandleGetAssignment polls for a prepared assignment
func HandleGetAssignment(pairer *pairing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tid := c.Query("tid")
		did := c.Query("did")
		if tid == "" || did == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tid and did are required"})
			return
		}

		respondAssignment(c, pairer.Poll(tid, did))
	}
}
