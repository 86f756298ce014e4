package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"levlyfy/internal/calls"
	"levlyfy/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidContact = errors.New("contacts: invalid contact")

// Backend is the slice of apiclient.Client contacts need.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

type Service struct {
	backend     Backend
	validate    *validator.Validate
	countryCode string
	log         *slog.Logger
}

// NewService builds a contacts service. Phones are stored in E.164 form
// using defaultCountryCode for local numbers.
func NewService(b Backend, defaultCountryCode string, log *slog.Logger) *Service {
	return &Service{
		backend:     b,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		countryCode: defaultCountryCode,
		log:         logger.OrDiscard(log),
	}
}

func (s *Service) List(ctx context.Context) ([]Contact, error) {
	var out []Contact
	if err := s.backend.Get(ctx, "/contacts", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Contact{}
	}
	return out, nil
}

// Search lists contacts whose name contains query (case-insensitive) or
// whose phone digits contain the digits of query. An empty query matches all.
func (s *Service) Search(ctx context.Context, query string) ([]Contact, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return all, nil
	}
	q := strings.ToLower(query)
	qd := digitsOf(query)

	out := make([]Contact, 0, len(all))
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) || (qd != "" && strings.Contains(digitsOf(c.Phone), qd)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Contact, error) {
	if strings.TrimSpace(id) == "" {
		return Contact{}, fmt.Errorf("%w: id is required", ErrInvalidContact)
	}
	var c Contact
	if err := s.backend.Get(ctx, "/contacts/"+url.PathEscape(id), nil, &c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, in Input) (Contact, error) {
	in, err := s.clean(ctx, in)
	if err != nil {
		return Contact{}, err
	}
	var c Contact
	if err := s.backend.Post(ctx, "/contacts", in, &c); err != nil {
		return Contact{}, err
	}
	s.log.Info("contact created", "contact_id", c.ID)
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (Contact, error) {
	if strings.TrimSpace(id) == "" {
		return Contact{}, fmt.Errorf("%w: id is required", ErrInvalidContact)
	}
	in, err := s.clean(ctx, in)
	if err != nil {
		return Contact{}, err
	}
	var c Contact
	if err := s.backend.Put(ctx, "/contacts/"+url.PathEscape(id), in, &c); err != nil {
		return Contact{}, err
	}
	if c.ID == "" {
		c = Contact{ID: id, Name: in.Name, Phone: in.Phone, Notes: in.Notes}
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidContact)
	}
	if err := s.backend.Delete(ctx, "/contacts/"+url.PathEscape(id), nil); err != nil {
		return err
	}
	s.log.Info("contact deleted", "contact_id", id)
	return nil
}

func (s *Service) clean(ctx context.Context, in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	phone, err := calls.NormalizeNumber(in.Phone, s.countryCode)
	if err != nil {
		return Input{}, fmt.Errorf("%w: phone: %v", ErrInvalidContact, err)
	}
	in.Phone = phone
	return in, nil
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
