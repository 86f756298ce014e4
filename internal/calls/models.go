package calls

import "time"

// SessionState is the lifecycle of the single call session.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateInitializing SessionState = "initializing"
	StateReady        SessionState = "ready"
	StatePlacing      SessionState = "placing"
	StateRinging      SessionState = "ringing"
	StateConnected    SessionState = "connected"
	StateDisconnected SessionState = "disconnected"
	StateError        SessionState = "error"
)

// Active reports whether a call session exists in s.
func (s SessionState) Active() bool {
	switch s {
	case StatePlacing, StateRinging, StateConnected:
		return true
	default:
		return false
	}
}

// Dialable reports whether a new outbound call may start from s.
func (s SessionState) Dialable() bool {
	switch s {
	case StateIdle, StateReady, StateDisconnected, StateError:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	// DirectionInbound marks legs that arrived unsolicited and were auto-accepted.
	DirectionInbound Direction = "inbound"
)

// Snapshot is a point-in-time copy of the call session.
//
// Invariants:
// - DurationSeconds is 0 unless State is connected.
// - Muted and Held are false unless State is connected.
// - ConnectedAt is set only once the session reached connected.
type Snapshot struct {
	State     SessionState `json:"state"`
	Direction Direction    `json:"direction,omitempty"`

	// TargetAddress is the normalized number being called.
	TargetAddress string `json:"targetAddress,omitempty"`

	// ProviderSessionID is assigned by the telephony SDK; empty until known.
	ProviderSessionID string `json:"providerSessionId,omitempty"`

	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ConnectedAt     *time.Time `json:"connectedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`

	Muted bool `json:"muted"`
	Held  bool `json:"held"`

	LastError   string `json:"lastError,omitempty"`
	DeviceReady bool   `json:"deviceReady"`
}

// Transition is delivered to observers for every state change, and once
// per second while connected with Tick set.
type Transition struct {
	From     SessionState `json:"from"`
	To       SessionState `json:"to"`
	Tick     bool         `json:"tick,omitempty"`
	Snapshot Snapshot     `json:"snapshot"`
	At       time.Time    `json:"at"`

	// TalkSeconds is set on the transition that leaves connected.
	TalkSeconds int `json:"talkSeconds,omitempty"`
}
