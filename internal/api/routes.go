// internal/api/routes.go
// Central route registration for all API endpoints

package api

import (
	"github.com/nharan/TournamentRPS/internal/services"

	"github.com/gin-gonic/gin"
)

// RegisterCoordinatorRoutes registers ticketing and pairing routes
func RegisterCoordinatorRoutes(router *gin.Engine, svc *services.Container) {
	router.POST("/ticket", HandleIssueTicket(svc.Ticket))
	router.POST("/queue_ready", HandleQueueReady(svc.Pairing))
	router.POST("/queue_cancel", HandleQueueCancel(svc.Pairing))
	router.POST("/register", HandleRegister(svc.Pairing))
	router.POST("/start_round", HandleStartRound(svc.Pairing))
	router.GET("/assignment", HandleGetAssignment(svc.Pairing))
}

// RegisterFairnessRoutes registers commit/reveal binding routes
func RegisterFairnessRoutes(router *gin.Engine, svc *services.Container) {
	router.POST("/commit", HandleCommit())
	router.POST("/reveal", HandleVerifyReveal())
	router.POST("/ai_move", HandleAIMove())
}

// RegisterAdminRoutes registers admin-only routes
func RegisterAdminRoutes(router *gin.Engine, svc *services.Container) {
	admin := router.Group("/admin")
	{
		admin.POST("/reset", HandleAdminReset(svc))
		admin.GET("/state", HandleAdminState(svc))
	}
}
