package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/footprint/internal/identity"
	obscontext "github.com/smallbiznis/footprint/internal/observability/context"
)

// Headers set by the authenticating gateway in front of this service.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// PrincipalMiddleware copies the gateway identity headers into the request context.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := identity.Principal{
			ID:    strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Email: strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
		}
		if principal.ID == "" && principal.Email == "" {
			c.Next()
			return
		}

		ctx := identity.WithPrincipal(c.Request.Context(), principal)
		if id, ok := identity.ParseOwnerID(principal.ID); ok {
			ctx = obscontext.WithActor(ctx, "user", id.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
