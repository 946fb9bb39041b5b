// internal/api/health.go
// Health check endpoint for monitoring

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness with the literal body probes expect
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	}
}
