// Package middleware provides the gin middleware of the ops server.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockroom/internal/core/apperror"
	"stockroom/pkg/logger"
)

// Recovery turns a panic into a 500 response. The stack is logged and never
// sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)

				appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id"))
				_ = c.Error(appErr)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(c, appErr))
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
