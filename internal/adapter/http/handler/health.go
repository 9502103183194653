package handler

import (
	"context"
	"net/http"
	"time"

	"ticket-wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a handler that pings every dependency.
// Responds 200 when all are healthy, 503 otherwise.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checkers))
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[checker.Name()] = "up"
		}

		c.JSON(status, gin.H{
			"status":       httpStatusWord(status),
			"dependencies": deps,
		})
	}
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
