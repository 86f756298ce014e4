package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for everything pushed to views and to NATS.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps payload with the current timestamp.
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server to client message types.
const (
	TypeCallState = "call.state"
	TypeCallTick  = "call.tick"
	TypeView      = "dialer.view"
	TypeError     = "error"
)

// Client to server command types (WebSocket).
const (
	TypePress     = "press"
	TypeBackspace = "backspace"
	TypeClear     = "clear"
	TypeDial      = "dial"
	TypeHangup    = "hangup"
	TypeMute      = "mute"
	TypeHold      = "hold"
	TypeReset     = "reset"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrCommandFailed  = "COMMAND_FAILED"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Command is a client to server message.
type Command struct {
	Type   string `json:"type"`
	Digit  string `json:"digit,omitempty"`
	Number string `json:"number,omitempty"`
}
