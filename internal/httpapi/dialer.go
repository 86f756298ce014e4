package httpapi

import (
	"errors"
	"net/http"

	"levlyfy/internal/apiclient"
	"levlyfy/internal/calls"
	"levlyfy/internal/dialer"
	"levlyfy/pkg/logger"

	"github.com/gin-gonic/gin"
)

type startCallRequest struct {
	Number string `json:"number" binding:"required"`
}

type digitsRequest struct {
	Digits string `json:"digits" binding:"required"`
}

func (h Handlers) view() gin.H {
	snap := h.Calls.Snapshot()
	return gin.H{"snapshot": snap, "view": dialer.Present(snap)}
}

func (h Handlers) DialerState(c *gin.Context) {
	c.JSON(http.StatusOK, h.view())
}

// InitializeDevice registers the softphone. Failures leave the dialer in
// the error state; the response carries that state too.
func (h Handlers) InitializeDevice(c *gin.Context) {
	if err := h.Calls.InitializeDevice(c.Request.Context()); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, calls.ErrClosed) {
			abortWithError(c, err)
			return
		}
		logger.FromGin(c).Warn("device initialization failed", "err", err)
		body := h.view()
		body["error"] = "Could not initialize the phone device"
		c.AbortWithStatusJSON(http.StatusBadGateway, body)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": calls.UserMessage(calls.ErrInvalidDestination)})
		return
	}
	if err := h.Calls.StartCall(c.Request.Context(), req.Number); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.view())
}

func (h Handlers) EndCall(c *gin.Context) {
	h.Calls.EndCall(c.Request.Context())
	c.JSON(http.StatusOK, h.view())
}

func (h Handlers) Reset(c *gin.Context) {
	h.Calls.Reset()
	c.JSON(http.StatusOK, h.view())
}

func (h Handlers) ToggleMute(c *gin.Context) {
	muted, err := h.Calls.ToggleMute()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

func (h Handlers) ToggleHold(c *gin.Context) {
	held, err := h.Calls.ToggleHold()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"held": held})
}

func (h Handlers) SendDigits(c *gin.Context) {
	var req digitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": calls.UserMessage(calls.ErrInvalidDigits)})
		return
	}
	if err := h.Calls.SendDigits(req.Digits); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Events(c *gin.Context) {
	h.Views.Stream(c)
}

func (h Handlers) WebSocket(c *gin.Context) {
	h.Views.ServeWS(c.Writer, c.Request)
}
