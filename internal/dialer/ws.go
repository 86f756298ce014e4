package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"levlyfy/internal/calls"
	"levlyfy/internal/events"

	"github.com/gorilla/websocket"
)

type session struct {
	conn *websocket.Conn
	pad  *Pad
	srv  *Server
	log  *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// ServeWS upgrades the request and runs one dialer session until the
// client goes away. It blocks for the life of the connection.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	sess := &session{
		conn: conn,
		pad:  NewPad(s.ctl),
		srv:  s,
		log:  s.log.With("remote", r.RemoteAddr),
		send: make(chan []byte, sendBuffer),
	}
	feed, cancel := s.feed.Subscribe()
	sess.log.Info("dialer view connected")

	go sess.writePump()
	go func() {
		for t := range feed {
			sess.push(messageType(t), sess.pad.viewOf(t.Snapshot))
		}
	}()
	sess.push(events.TypeView, sess.pad.View())

	sess.readPump()
	cancel()
	sess.close()
	sess.log.Info("dialer view disconnected")
}

func (c *session) readPump() {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "err", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *session) handle(raw []byte) {
	var cmd events.Command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type == "" {
		c.pushError(events.ErrInvalidMessage, "invalid command")
		return
	}

	ctx, cancel := context.WithTimeout(c.srv.base, commandTimeout)
	defer cancel()

	if err := c.apply(ctx, cmd); err != nil {
		var unknown *unknownCommandError
		if errors.As(err, &unknown) {
			c.pushError(events.ErrInvalidMessage, err.Error())
			return
		}
		c.log.Info("dialer command failed", "command", cmd.Type, "err", err)
		c.pushError(events.ErrCommandFailed, calls.UserMessage(err))
		return
	}
	// Pad edits do not move the coordinator, so nothing else would redraw.
	c.push(events.TypeView, c.pad.View())
}

type unknownCommandError struct{ typ string }

func (e *unknownCommandError) Error() string { return fmt.Sprintf("unknown command %q", e.typ) }

func (c *session) apply(ctx context.Context, cmd events.Command) error {
	ctl := c.srv.ctl
	switch cmd.Type {
	case events.TypePress:
		return c.pad.Press(cmd.Digit)
	case events.TypeBackspace:
		c.pad.Backspace()
	case events.TypeClear:
		c.pad.Clear()
	case events.TypeDial:
		if cmd.Number != "" {
			c.pad.Set(cmd.Number)
		}
		return c.pad.Dial(ctx)
	case events.TypeHangup:
		ctl.EndCall(ctx)
	case events.TypeMute:
		_, err := ctl.ToggleMute()
		return err
	case events.TypeHold:
		_, err := ctl.ToggleHold()
		return err
	case events.TypeReset:
		ctl.Reset()
	default:
		return &unknownCommandError{typ: cmd.Type}
	}
	return nil
}

func (c *session) push(msgType string, payload any) {
	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		c.log.Error("encode view", "err", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("dialer view send buffer full, dropping message", "type", msgType)
	}
}

func (c *session) pushError(code, message string) {
	c.push(events.TypeError, events.ErrorPayload{Code: code, Message: message})
}

func (c *session) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
