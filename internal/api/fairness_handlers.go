// internal/api/fairness_handlers.go
// Fairness HTTP handlers: commit-hash binding and substitute move preview.
// The binding is offered to clients that want to verify off-band; the turn
// arbiter never consults it.

package api

import (
	"net/http"

	"github.com/nharan/TournamentRPS/internal/game"

	"github.com/gin-gonic/gin"
)

// HandleCommit computes the commitment digest for a future reveal
func HandleCommit() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID string `json:"match_id" binding:"required"`
			DID     string `json:"did" binding:"required"`
			Turn    uint32 `json:"turn" binding:"required,min=1"`
			Move    string `json:"move_" binding:"required"`
			Nonce   string `json:"nonce" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		commit := game.CommitHash(req.MatchID, req.DID, req.Turn, req.Move, req.Nonce)
		c.JSON(http.StatusOK, gin.H{"ok": true, "commit": commit})
	}
}

// HandleVerifyReveal checks a reveal against its earlier commitment
func HandleVerifyReveal() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Commit  string `json:"commit" binding:"required"`
			MatchID string `json:"match_id" binding:"required"`
			DID     string `json:"did" binding:"required"`
			Turn    uint32 `json:"turn" binding:"required,min=1"`
			Move    string `json:"move_" binding:"required"`
			Nonce   string `json:"nonce" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		valid := game.VerifyReveal(req.Commit, req.MatchID, req.DID, req.Turn, req.Move, req.Nonce)
		c.JSON(http.StatusOK, gin.H{"ok": true, "valid": valid})
	}
}

// HandleAIMove previews the substitute pick generator. The VRF fields are
// stubs retained for client compatibility.
func HandleAIMove() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID string `json:"match_id" binding:"required"`
			Turn    int    `json:"turn" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		move := game.SubstituteMove(req.MatchID, req.Turn, "AI")
		c.JSON(http.StatusOK, gin.H{
			"rps":        string(move),
			"vrfOutput":  "0x00",
			"vrfProof":   "0x00",
			"drandEpoch": 0,
		})
	}
}
