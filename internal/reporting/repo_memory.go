package reporting

import (
	"context"
	"sync"
)

// MemoryRepo serves fixed data. Used by tests and the local demo mode.
type MemoryRepo struct {
	mu sync.Mutex

	Boards map[Period][]LeaderboardRow
	Me     map[Period]*LeaderboardRow
	Calls  []CallRecord

	// Err, when set, is returned by every read.
	Err error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Boards: map[Period][]LeaderboardRow{}, Me: map[Period]*LeaderboardRow{}}
}

func (r *MemoryRepo) ListLeaderboard(ctx context.Context, period Period) ([]LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]LeaderboardRow(nil), r.Boards[period]...), nil
}

func (r *MemoryRepo) GetMyStats(ctx context.Context, period Period) (*LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	row, ok := r.Me[period]
	if !ok || row == nil {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryRepo) ListMyCalls(ctx context.Context) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]CallRecord(nil), r.Calls...), nil
}
