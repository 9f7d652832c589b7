package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockroom/internal/core/apperror"
	"stockroom/pkg/logger"
)

// ErrorHandler renders the last error attached to the gin context as JSON
// unless the handler already wrote a response. Causes are logged, not sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			c.JSON(appErr.HTTPStatus, errorBody(c, appErr))
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		})
	}
}

func errorBody(c *gin.Context, e *apperror.AppError) gin.H {
	if e.Code == apperror.CodeInternal {
		return gin.H{
			"code":    e.Code,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		}
	}
	body := gin.H{"code": e.Code, "message": e.Message, "details": e.Details}
	if len(e.Errors) > 0 {
		body["errors"] = e.Errors
	}
	return body
}
