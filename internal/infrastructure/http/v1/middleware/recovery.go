// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"activatable/internal/core/apperror"
	appctx "activatable/internal/core/context"
	"activatable/pkg/logger"
)

// Recovery turns a panic in a handler into an INTERNAL_ERROR response. The stack
// goes to the log only. A write committed before the panic stays committed, and
// its activation events have already been sent.
//
// The middleware after Recovery, ErrorHandler included, is unwound by the panic,
// so Recovery writes the response itself.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "panic recovered",
				"panic", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			err := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", appctx.GetRequestID(ctx))
			status, body := errorBody(c, err)
			failIdempotency(c, status, body)
			c.AbortWithStatusJSON(status, body)
		}()
		c.Next()
	}
}
