package reporting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"levlyfy/internal/apiclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func board() []LeaderboardRow {
	return []LeaderboardRow{
		{UserID: "a", Name: "Ana", CallsMade: 10, DealsClosed: 1, Upsells: 4, TotalScore: 300},
		{UserID: "b", Name: "Ben", CallsMade: 30, DealsClosed: 2, Upsells: 0, TotalScore: 250},
		{UserID: "c", Name: "Cy", CallsMade: 20, DealsClosed: 2, Upsells: 1, TotalScore: 900},
		{UserID: "d", Name: "Di", CallsMade: 5, DealsClosed: 0, Upsells: 2, TotalScore: 10},
	}
}

func names(rows []LeaderboardRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestLeaderboard_SortsByMetricAndSlices(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Boards[PeriodWeekly] = board()
	svc := NewService(repo, nil)

	lb, err := svc.Leaderboard(context.Background(), LeaderboardRequest{Metric: MetricCallsMade, Top: 3})
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, lb.Period)
	assert.Equal(t, []string{"Ben", "Cy", "Ana"}, names(lb.Rows))
	assert.Equal(t, 1, lb.Rows[0].Place)

	// Ben and Cy tie on deals; backend order wins.
	lb, err = svc.Leaderboard(context.Background(), LeaderboardRequest{Period: PeriodWeekly, Metric: MetricDealsClosed})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ben", "Cy", "Ana", "Di"}, names(lb.Rows))

	lb, err = svc.Leaderboard(context.Background(), LeaderboardRequest{Period: PeriodWeekly, Metric: MetricUpsells, Top: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana"}, names(lb.Rows))
}

func TestLeaderboard_EmptyIsNotAnError(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	lb, err := svc.Leaderboard(context.Background(), LeaderboardRequest{Period: PeriodMonthly})
	require.NoError(t, err)
	assert.NotNil(t, lb.Rows)
	assert.Empty(t, lb.Rows)
}

func TestLeaderboard_RejectsUnknownSelectors(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	_, err := svc.Leaderboard(context.Background(), LeaderboardRequest{Period: "yearly"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Leaderboard(context.Background(), LeaderboardRequest{Metric: "revenue"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Leaderboard(context.Background(), LeaderboardRequest{Top: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMyStats_PlaceFromMetricSortedBoard(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Boards[PeriodAllTime] = board()
	me := board()[0]
	repo.Me[PeriodAllTime] = &me
	svc := NewService(repo, nil)

	got, err := svc.MyStats(context.Background(), PeriodAllTime, MetricUpsells)
	require.NoError(t, err)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 1, got.Place)

	got, err = svc.MyStats(context.Background(), PeriodAllTime, MetricCallsMade)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Place)
}

func TestMyStats_Unranked(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Boards[PeriodWeekly] = board()
	got, err := NewService(repo, nil).MyStats(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, got.Stats)
	assert.Zero(t, got.Place)
}

func TestCallsSummary(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Calls = []CallRecord{
		{ID: "1", Status: CallStatusAnalyzed, Score: 80, Duration: 60},
		{ID: "2", Status: CallStatusAnalyzed, Score: 65, Duration: 30},
		{ID: "3", Status: CallStatusProcessing, Duration: 10},
		{ID: "4", Status: CallStatusFailed},
		{ID: "5", Status: "queued"},
	}
	out, err := NewService(repo, nil).CallsSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, out.TotalCalls)
	assert.Equal(t, 2, out.AnalyzedCalls)
	assert.Equal(t, 1, out.ProcessingCalls)
	assert.Equal(t, 1, out.FailedCalls)
	assert.Equal(t, 1, out.ByStatus["queued"])
	assert.Equal(t, 72.5, out.AverageScore)
	assert.Equal(t, 100, out.TotalDurationSeconds)
}

func TestCallsSummary_NoAnalyzedCalls(t *testing.T) {
	out, err := NewService(NewMemoryRepo(), nil).CallsSummary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, out.TotalCalls)
	assert.Zero(t, out.AverageScore)
}

func TestHome(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Boards[PeriodAllTimeCompact] = board()
	repo.Me[PeriodAllTimeCompact] = &LeaderboardRow{UserID: "a", CallsMade: 25, DealsClosed: 2, Upsells: 0, TotalScore: 340}
	svc := NewService(repo, nil)

	home, err := svc.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, home.Level)
	assert.Equal(t, "Rising Star", home.LevelTitle)
	assert.Equal(t, Goal{Current: 25, Target: 20, Percent: 100}, home.CallsGoal)
	assert.Equal(t, Goal{Current: 2, Target: 5, Percent: 40}, home.DealsGoal)
	assert.Equal(t, []string{"Cy", "Ana", "Ben"}, names(home.TopPerformers))
	assert.NotNil(t, home.RecentCalls)
	assert.Empty(t, home.RecentCalls)
	assert.Empty(t, home.Warnings)
	assert.Equal(t, []string{
		"Amazing! You've exceeded your daily call goal. Great momentum!",
		"Excellent work! You've closed 2 deals this week!",
		"Your total score of 340 shows real progress. Keep building!",
		"You're currently level 3. Each call brings you closer to the next level!",
	}, home.Messages)
}

func TestHome_NewUser(t *testing.T) {
	home, err := NewService(NewMemoryRepo(), nil).Home(context.Background())
	require.NoError(t, err)
	assert.Nil(t, home.Stats)
	assert.Equal(t, "Rookie", home.LevelTitle)
	assert.Zero(t, home.CallsGoal.Percent)
	assert.Equal(t, []string{"Keep up the great work!"}, home.Messages)
}

type failingBoard struct{ *MemoryRepo }

func (failingBoard) ListLeaderboard(ctx context.Context, period Period) ([]LeaderboardRow, error) {
	return nil, errors.New("upstream 502")
}

func TestHome_DegradesOptionalSections(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Me[PeriodAllTimeCompact] = &LeaderboardRow{UserID: "a", CallsMade: 3}
	home, err := NewService(failingBoard{repo}, nil).Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"leaderboard unavailable"}, home.Warnings)
	assert.NotNil(t, home.TopPerformers)
	assert.Contains(t, home.Messages[0], "17 calls away")
}

func TestHome_StatsFailureFails(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Err = errors.New("down")
	_, err := NewService(repo, nil).Home(context.Background())
	require.Error(t, err)
}

func TestAPIRepo_AgainstBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/performance/leaderboard":
			assert.Equal(t, "weekly", r.URL.Query().Get("period"))
			_, _ = w.Write([]byte(`[{"userId":"a","name":"Ana","callsMade":3}]`))
		case "/api/performance/leaderboard/me":
			if r.URL.Query().Get("period") == "monthly" {
				http.Error(w, `{"message":"not ranked"}`, http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"status":true,"data":{"userId":"a","name":"Ana","callsMade":3}}`))
		case "/api/call/my-calls":
			_, _ = w.Write([]byte(`{"data":{"calls":[{"_id":"c1","status":"analyzed","score":90}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL + "/api")
	require.NoError(t, err)
	repo := NewAPIRepo(client)
	ctx := context.Background()

	rows, err := repo.ListLeaderboard(ctx, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana"}, names(rows))

	me, err := repo.GetMyStats(ctx, PeriodWeekly)
	require.NoError(t, err)
	require.NotNil(t, me)
	assert.Equal(t, 3, me.CallsMade)

	me, err = repo.GetMyStats(ctx, PeriodMonthly)
	require.NoError(t, err)
	assert.Nil(t, me)

	calls, err := repo.ListMyCalls(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, CallStatusAnalyzed, calls[0].Status)
	assert.Equal(t, 90.0, calls[0].Score)
}
