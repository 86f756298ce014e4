package reporting

import (
	"context"
	"errors"
	"net/url"

	"levlyfy/internal/apiclient"
)

// Backend is the slice of apiclient.Client reporting reads through.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// APIRepo reads performance data from the backend REST API.
type APIRepo struct {
	backend Backend
}

func NewAPIRepo(b Backend) *APIRepo { return &APIRepo{backend: b} }

func (r *APIRepo) ListLeaderboard(ctx context.Context, period Period) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	if err := r.backend.Get(ctx, "/performance/leaderboard", url.Values{"period": {string(period)}}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetMyStats returns nil when the backend has no row for the caller.
func (r *APIRepo) GetMyStats(ctx context.Context, period Period) (*LeaderboardRow, error) {
	var row LeaderboardRow
	err := r.backend.Get(ctx, "/performance/leaderboard/me", url.Values{"period": {string(period)}}, &row)
	if errors.Is(err, apiclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.UserID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *APIRepo) ListMyCalls(ctx context.Context) ([]CallRecord, error) {
	var out struct {
		Calls []CallRecord `json:"calls"`
	}
	if err := r.backend.Get(ctx, "/call/my-calls", nil, &out); err != nil {
		return nil, err
	}
	return out.Calls, nil
}
