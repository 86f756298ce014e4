package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps the journal in process. Used when no database is
// configured, and by tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// List returns matching entries, newest first.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, f.Limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := r.entries[i]
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.ProviderSessionID != "" && e.ProviderSessionID != f.ProviderSessionID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
