package dialer

import (
	"context"
	"log/slog"
	"time"

	"levlyfy/internal/calls"
	"levlyfy/internal/events"
	"levlyfy/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	sendBuffer     = 256
	sseKeepAlive   = 15 * time.Second
	commandTimeout = 30 * time.Second
)

// Feed is a source of coordinator transitions, usually *events.Hub.
type Feed interface {
	Subscribe() (<-chan calls.Transition, func())
}

// Server serves live dialer views over WebSocket and SSE. Every view
// subscribes to the same feed and drives the same controller.
type Server struct {
	ctl  Controller
	feed Feed
	base context.Context
	log  *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer builds a view server. Commands run under base, so cancelling
// it aborts in-flight dials on shutdown.
func NewServer(base context.Context, ctl Controller, feed Feed, log *slog.Logger) *Server {
	return &Server{
		ctl:  ctl,
		feed: feed,
		base: base,
		log:  logger.OrDiscard(log).With("component", "dialer"),
		// A nil CheckOrigin rejects cross-origin pages.
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

func messageType(t calls.Transition) string {
	if t.Tick {
		return events.TypeCallTick
	}
	return events.TypeCallState
}
