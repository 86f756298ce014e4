package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"levlyfy/internal/apiclient"
	"levlyfy/pkg/logger"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Backend is the slice of apiclient.Client used by the auth service.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

type Service struct {
	api  Backend
	sess *Session
	log  *slog.Logger
}

func NewService(api Backend, sess *Session, log *slog.Logger) *Service {
	return &Service{api: api, sess: sess, log: logger.OrDiscard(log)}
}

func (s *Service) Session() *Session { return s.sess }

func (s *Service) Login(ctx context.Context, in Credentials) (User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return User{}, ErrInvalidCredentials
	}
	return s.authenticate(ctx, "/auth/login", in)
}

func (s *Service) Signup(ctx context.Context, in SignupRequest) (User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return User{}, ErrInvalidCredentials
	}
	return s.authenticate(ctx, "/auth/signup", in)
}

func (s *Service) authenticate(ctx context.Context, path string, body any) (User, error) {
	var out authPayload
	if err := s.api.Post(ctx, path, body, &out); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if out.Token == "" {
		return User{}, errors.New("auth: backend returned no token")
	}
	if err := s.sess.Set(ctx, Record{User: out.User, Token: out.Token}); err != nil {
		return User{}, err
	}
	s.log.Info("logged in", "user_id", out.User.ID)
	return out.User, nil
}

func (s *Service) Logout(ctx context.Context) error {
	return s.sess.Clear(ctx)
}

// Me fetches the current user from the backend.
func (s *Service) Me(ctx context.Context) (User, error) {
	var u User
	if err := s.api.Get(ctx, "/auth/me", nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Validate re-checks the stored token. A locally expired token is
// invalidated without a round trip; a backend 401 invalidates through the
// API client's unauthorized hook. Other failures keep the session.
func (s *Service) Validate(ctx context.Context) {
	s.sess.mu.RLock()
	tok := s.sess.rec.Token
	s.sess.mu.RUnlock()
	if tok == "" {
		return
	}
	if Expired(tok, s.sess.now()) {
		s.sess.Invalidate(ctx)
		return
	}
	if _, err := s.Me(ctx); err != nil && !errors.Is(err, apiclient.ErrUnauthorized) {
		s.log.Debug("session validation skipped", "err", err)
	}
}

// ValidateLoop runs Validate immediately and then every interval until ctx
// is done.
func (s *Service) ValidateLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	s.Validate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Validate(ctx)
		}
	}
}
