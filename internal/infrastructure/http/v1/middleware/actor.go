package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "activatable/internal/core/context"
)

const HeaderActor = "X-Actor"

// Actor puts the caller named by the X-Actor header into the request context,
// where activation events and the audit log pick it up. Authentication is out of
// scope: the header is trusted as sent.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := c.GetHeader(HeaderActor); name != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{ID: name, Source: "api"})
			c.Request = c.Request.WithContext(ctx)
			c.Set("actor", name)
		}
		c.Next()
	}
}
