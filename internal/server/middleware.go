package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/heylinko/linko/internal/usercontext"
)

const userIDHeader = "X-User-ID"

// RequireUser resolves the caller identity from the gateway-injected
// header and stores it on the request context. Requests without one are
// rejected before any handler runs.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(usercontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func callerID(c *gin.Context) (string, bool) {
	return usercontext.UserIDFromContext(c.Request.Context())
}
