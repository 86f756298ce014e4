package rbac

import (
	"net/http"

	"levlyfy/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the logged-in user has any of the
// provided roles. Admins pass every check. Use it after
// auth.RequireSession, which puts the user in the request context.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		u, err := auth.UserFrom(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if IsAdmin(u.Role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[u.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
