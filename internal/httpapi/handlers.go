package httpapi

import (
	"context"
	"errors"
	"net/http"

	"levlyfy/internal/apiclient"
	"levlyfy/internal/audit"
	"levlyfy/internal/auth"
	"levlyfy/internal/calls"
	"levlyfy/internal/contacts"
	"levlyfy/internal/dialer"
	"levlyfy/internal/rbac"
	"levlyfy/internal/reporting"
	"levlyfy/internal/telephony"
	"levlyfy/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallControl is the coordinator surface the dialer routes use.
type CallControl interface {
	dialer.Controller
	InitializeDevice(ctx context.Context) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Service
	Reporting *reporting.Service
	Contacts  *contacts.Service
	Calls     CallControl
	Journal   *audit.Service
	Views     *dialer.Server
}

// Register mounts every local route. requireSession guards everything
// except login, signup and logout.
func (h Handlers) Register(r gin.IRouter, requireSession gin.HandlerFunc) {
	a := r.Group("/auth")
	{
		a.POST("/login", h.Login)
		a.POST("/signup", h.Signup)
		a.POST("/logout", h.Logout)
		a.GET("/me", requireSession, h.Me)
	}

	p := r.Group("/")
	p.Use(requireSession)
	{
		p.GET("/home", h.Home)
		p.GET("/leaderboard", h.Leaderboard)
		p.GET("/leaderboard/me", h.MyStats)

		p.GET("/calls/history", h.CallHistory)
		p.GET("/calls/summary", h.CallsSummary)
		p.GET("/calls/journal", h.CallJournal)

		p.GET("/contacts", h.ListContacts)
		p.POST("/contacts", h.CreateContact)
		p.GET("/contacts/:id", h.GetContact)
		p.PUT("/contacts/:id", h.UpdateContact)
		p.DELETE("/contacts/:id", h.DeleteContact)
	}

	adm := p.Group("/admin")
	adm.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		adm.GET("/journal", h.AdminJournal)
	}

	d := p.Group("/dialer")
	{
		d.GET("/state", h.DialerState)
		d.POST("/device", h.InitializeDevice)
		d.POST("/call", h.StartCall)
		d.POST("/hangup", h.EndCall)
		d.POST("/mute", h.ToggleMute)
		d.POST("/hold", h.ToggleHold)
		d.POST("/digits", h.SendDigits)
		d.POST("/reset", h.Reset)
		d.GET("/events", h.Events)
		d.GET("/ws", h.WebSocket)
	}
}

// abortWithError maps service errors onto status codes. Backend messages
// are passed through when the backend supplied one.
func abortWithError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized, "session expired, please log in again"
	case errors.Is(err, reporting.ErrInvalidRequest), errors.Is(err, contacts.ErrInvalidContact):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, calls.ErrInvalidDestination), errors.Is(err, calls.ErrInvalidDigits):
		return http.StatusBadRequest, calls.UserMessage(err)
	case errors.Is(err, calls.ErrSessionActive), errors.Is(err, calls.ErrNotConnected), errors.Is(err, calls.ErrCallCanceled):
		return http.StatusConflict, calls.UserMessage(err)
	case errors.Is(err, telephony.ErrHoldUnsupported):
		return http.StatusNotImplemented, calls.UserMessage(err)
	case errors.Is(err, calls.ErrDeviceNotReady), errors.Is(err, calls.ErrClosed):
		return http.StatusServiceUnavailable, "Phone device not ready"
	case errors.Is(err, calls.ErrPlacementFailed):
		return http.StatusBadGateway, calls.UserMessage(err)
	case errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound, apiclient.Message(err, "not found")
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiclient.Message(err, "backend request failed")
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
