package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/model"
	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
)

// ErrorHandler renders the last error pushed with c.Error as {"error": message}.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, model.ErrorResponse{Error: appErr.Message})
	}
}
