package audit

import "time"

// Entry is an immutable, append-only record of one call-session transition.
//
// Invariants:
// - Entries are never updated or deleted.
// - From and To are always set; UserID is best-effort (empty when no
//   one is logged in, e.g. an inbound leg after logout).
// - Journal writes never block or fail a call flow.
//
// Storage (Postgres): table dialer_session_journal, INSERT-only.
type Entry struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"userId,omitempty" db:"user_id"`

	From string `json:"from" db:"from_state"`
	To   string `json:"to" db:"to_state"`

	Direction         string `json:"direction,omitempty" db:"direction"`
	ProviderSessionID string `json:"providerSessionId,omitempty" db:"provider_session_id"`
	TargetAddress     string `json:"targetAddress,omitempty" db:"target_address"`
	LastError         string `json:"lastError,omitempty" db:"last_error"`

	// DurationSeconds is the talk time when the transition left connected.
	DurationSeconds int `json:"durationSeconds,omitempty" db:"duration_seconds"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Filter narrows List results. Zero Limit means DefaultListLimit.
type Filter struct {
	UserID            string
	ProviderSessionID string
	Limit             int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)
