package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"levlyfy/internal/calls"
	"levlyfy/pkg/logger"

	"github.com/nats-io/nats.go"
)

// Publisher is the slice of a NATS client used for transitions.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSClient wraps a NATS connection.
type NATSClient struct {
	conn *nats.Conn
	log  *slog.Logger
}

// ConnectNATS dials url with reconnects enabled. natsURL example:
// "nats://localhost:4222".
func ConnectNATS(natsURL, appName string, log *slog.Logger) (*NATSClient, error) {
	log = logger.OrDiscard(log)
	nc, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSClient{conn: nc, log: log}, nil
}

// Publish sends data on subject. ctx is checked before sending; NATS
// core publish itself is buffered and does not block.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// Close drains pending messages, then closes the connection.
func (c *NATSClient) Close() {
	if c.conn == nil || c.conn.IsClosed() {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.log.Warn("NATS drain failed", "err", err)
		c.conn.Close()
	}
}

// TransitionPublisher returns an observer that publishes state changes
// to <prefix>.call.state. Ticks stay local.
func TransitionPublisher(pub Publisher, prefix string, userID func() string, log *slog.Logger) calls.Observer {
	log = logger.OrDiscard(log)
	subject := prefix + "." + TypeCallState
	return calls.ObserverFunc(func(t calls.Transition) {
		if t.Tick {
			return
		}
		payload := statePayload{Transition: t}
		if userID != nil {
			payload.UserID = userID()
		}
		msg, err := NewMessage(TypeCallState, payload)
		if err != nil {
			log.Error("encode transition failed", "err", err)
			return
		}
		data, err := json.Marshal(msg)
		if err != nil {
			log.Error("encode message failed", "err", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, subject, data); err != nil {
			log.Warn("publish transition failed", "subject", subject, "err", err)
		}
	})
}

type statePayload struct {
	calls.Transition
	UserID string `json:"userId,omitempty"`
}
