package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"levlyfy/pkg/logger"
)

// Session is the process-wide holder of the logged-in user and bearer
// token. It satisfies apiclient.TokenSource.
//
// Invalidate clears the session and fires the invalidation hooks at most
// once per login, so a burst of concurrent 401s yields a single logout.
type Session struct {
	store Store
	log   *slog.Logger
	now   func() time.Time

	mu          sync.RWMutex
	rec         Record
	invalidated bool
	hooks       []func()
}

// NewSession restores any record already held by store.
func NewSession(ctx context.Context, store Store, log *slog.Logger) (*Session, error) {
	s := &Session{store: store, log: logger.OrDiscard(log), now: time.Now}
	rec, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.Empty() && Expired(rec.Token, s.now()) {
		s.log.Info("stored session expired, discarding", "user_id", rec.User.ID)
		_ = store.Clear(ctx)
		rec = Record{}
	}
	s.rec = rec
	return s, nil
}

// OnInvalidate registers fn to run once per forced logout.
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Token returns the bearer token, or "" when logged out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec.Empty() || Expired(s.rec.Token, s.now()) {
		return ""
	}
	return s.rec.Token
}

// User returns the logged-in user.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec.Empty() {
		return User{}, false
	}
	return s.rec.User, true
}

// Set stores a freshly issued session and re-arms Invalidate.
func (s *Session) Set(ctx context.Context, rec Record) error {
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}
	s.mu.Lock()
	s.rec = rec
	s.invalidated = false
	s.mu.Unlock()
	return nil
}

// Clear logs out without firing invalidation hooks.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec = Record{}
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

// Invalidate clears the session after the backend rejected it. It reports
// whether this call performed the logout; later calls before the next Set
// are no-ops.
func (s *Session) Invalidate(ctx context.Context) bool {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return false
	}
	s.invalidated = true
	userID := s.rec.User.ID
	s.rec = Record{}
	hooks := make([]func(), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn("session store clear failed", "err", err)
	}
	s.log.Info("session invalidated", "user_id", userID)
	for _, fn := range hooks {
		fn()
	}
	return true
}
