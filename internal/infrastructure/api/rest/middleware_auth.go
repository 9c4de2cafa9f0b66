package rest

import (
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID carries the authenticated author id.
	ContextKeyUserID = "user_id"

	headerUserID = "x-user-id"
)

// RequireUserID rejects authoring requests without an x-user-id header.
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			respondAPIError(c, ErrMissingUserID)
			c.Abort()
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated author id from the request context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
