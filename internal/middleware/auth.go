package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
	"github.com/usexrp/agentwallet/internal/pkg/metrics"
)

const bearerPrefix = "Bearer "

// AuthMiddleware admits requests carrying "Authorization: Bearer <token>".
// Every rejection looks the same to the caller.
func AuthMiddleware(token string) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, bearerPrefix)

		if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			metrics.AuthFailures.Inc()
			logger.Warn("unauthorized request", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
			_ = c.Error(apperrors.NewUnauthorized())
			c.Abort()
			return
		}

		c.Next()
	}
}
