package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// StorePinger verifies document-store liveness for the health endpoint.
type StorePinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// HealthCheck handles the health check endpoint, reporting degraded when the
// document store stops answering.
func HealthCheck(serviceName string, store StorePinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			if err := store.Ping(c, healthPingTimeout); err != nil {
				respondError(c, http.StatusServiceUnavailable, serviceName+" degraded", err)
				return
			}
		}
		respondSuccess(c, http.StatusOK, serviceName+" healthy", gin.H{
			"status": "ok",
		})
	}
}
