package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"levlyfy/internal/calls"
	"levlyfy/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the journal.
// It is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Service records call-session transitions. Callers treat it as
// best-effort: a failed write is logged, never surfaced to the call.
type Service struct {
	repo    Repository
	log     *slog.Logger
	clock   func() time.Time
	timeout time.Duration
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: logger.OrDiscard(log), clock: time.Now, timeout: 2 * time.Second}
}

var ErrInvalidEntry = errors.New("audit: invalid entry")

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.From == "" || e.To == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// List returns journal entries, newest first, with the limit clamped.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	out, err := s.repo.List(ctx, f)
	if out == nil && err == nil {
		out = []Entry{}
	}
	return out, err
}

// Observer journals every state change. userID resolves who was logged in
// at the time; ticks are skipped.
func (s *Service) Observer(userID func() string) calls.Observer {
	return calls.ObserverFunc(func(t calls.Transition) {
		if t.Tick || t.From == t.To {
			return
		}
		e := Entry{
			From:              string(t.From),
			To:                string(t.To),
			Direction:         string(t.Snapshot.Direction),
			ProviderSessionID: t.Snapshot.ProviderSessionID,
			TargetAddress:     t.Snapshot.TargetAddress,
			LastError:         t.Snapshot.LastError,
			DurationSeconds:   t.TalkSeconds,
			CreatedAt:         t.At.UTC(),
		}
		if userID != nil {
			e.UserID = userID()
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Append(ctx, e); err != nil {
			s.log.Warn("journal append failed", "from", e.From, "to", e.To, "err", err)
		}
	})
}
