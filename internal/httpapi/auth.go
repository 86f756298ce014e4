package httpapi

import (
	"net/http"

	"levlyfy/internal/auth"
	"levlyfy/internal/rbac"

	"github.com/gin-gonic/gin"
)

func (h Handlers) Login(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	u, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h Handlers) Signup(c *gin.Context) {
	var req auth.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name, email and password required"})
		return
	}
	if req.Role != "" && !rbac.ValidRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "role must be admin, user or sales"})
		return
	}
	u, err := h.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// Logout hangs up any call before dropping the session.
func (h Handlers) Logout(c *gin.Context) {
	if h.Calls != nil {
		h.Calls.EndCall(c.Request.Context())
	}
	if err := h.Auth.Logout(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Me(c *gin.Context) {
	u, err := h.Auth.Me(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
