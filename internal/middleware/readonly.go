package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
)

// ReadOnlyMiddleware refuses anything that could move funds while enabled.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			_ = c.Error(apperrors.New(apperrors.ErrReadOnly, "payments are disabled (read-only mode)", nil))
			c.Abort()
		}
	}
}
