package dialer

import "levlyfy/internal/calls"

// Controls says which dialer buttons are usable.
type Controls struct {
	Call   bool `json:"call"`
	Hangup bool `json:"hangup"`
	Mute   bool `json:"mute"`
	Hold   bool `json:"hold"`
	Keypad bool `json:"keypad"`
	Reset  bool `json:"reset"`
}

// View is everything a dialer screen renders. It is derived from a
// snapshot and never feeds back into the coordinator.
type View struct {
	State     calls.SessionState `json:"state"`
	Label     string             `json:"label"`
	Direction calls.Direction    `json:"direction,omitempty"`

	// Number and Display are the pad buffer for WebSocket views, or the
	// call target when the pad is empty.
	Number  string `json:"number,omitempty"`
	Display string `json:"display,omitempty"`

	Duration        string `json:"duration"`
	DurationSeconds int    `json:"durationSeconds"`

	Muted       bool   `json:"muted"`
	Held        bool   `json:"held"`
	DeviceReady bool   `json:"deviceReady"`
	Error       string `json:"error,omitempty"`

	Controls Controls `json:"controls"`
}

// Present maps a snapshot to a View.
func Present(s calls.Snapshot) View {
	v := View{
		State:           s.State,
		Label:           label(s),
		Direction:       s.Direction,
		Number:          s.TargetAddress,
		Display:         FormatDisplay(s.TargetAddress),
		Duration:        FormatDuration(s.DurationSeconds),
		DurationSeconds: s.DurationSeconds,
		Muted:           s.Muted,
		Held:            s.Held,
		DeviceReady:     s.DeviceReady,
		Error:           s.LastError,
	}
	v.Controls = Controls{
		Call:   s.State.Dialable() && s.DeviceReady,
		Hangup: s.State.Active(),
		Mute:   s.State == calls.StateConnected,
		Hold:   s.State == calls.StateConnected,
		Keypad: s.State.Dialable() || s.State == calls.StateConnected,
		Reset:  s.State == calls.StateDisconnected || s.State == calls.StateError,
	}
	return v
}

func label(s calls.Snapshot) string {
	switch s.State {
	case calls.StateIdle:
		if s.DeviceReady {
			return "Ready"
		}
		return "Offline"
	case calls.StateInitializing:
		return "Initializing..."
	case calls.StateReady:
		return "Ready"
	case calls.StatePlacing:
		return "Calling..."
	case calls.StateRinging:
		if s.Direction == calls.DirectionInbound {
			return "Incoming call"
		}
		return "Ringing..."
	case calls.StateConnected:
		if s.Held {
			return "On hold"
		}
		return "Connected"
	case calls.StateDisconnected:
		return "Call ended"
	case calls.StateError:
		return "Error"
	default:
		return string(s.State)
	}
}
