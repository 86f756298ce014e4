package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginPath is where clients are sent when the session is gone.
const LoginPath = "/auth/login"

// RequireSession rejects requests while no user is logged in and injects
// the user into the request context.
func RequireSession(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Token() == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": LoginPath})
			return
		}
		u, _ := s.User()

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), u))
		c.Set("user_id", u.ID)

		c.Next()
	}
}
