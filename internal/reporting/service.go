package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"levlyfy/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts where performance data comes from. The backend
// owns ranking; implementations never compute it.
type Repository interface {
	ListLeaderboard(ctx context.Context, period Period) ([]LeaderboardRow, error)
	// GetMyStats returns nil, nil when the caller is not ranked.
	GetMyStats(ctx context.Context, period Period) (*LeaderboardRow, error)
	ListMyCalls(ctx context.Context) ([]CallRecord, error)
}

const (
	DailyCallsGoal = 20
	WeeklyDealGoal = 5
	pointsPerLevel = 100
	homeTopN       = 3
)

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: logger.OrDiscard(log)}
}

func normalize(period Period, metric Metric) (Period, Metric, error) {
	if period == "" {
		period = PeriodWeekly
	}
	if metric == "" {
		metric = MetricCallsMade
	}
	if !period.Valid() {
		return "", "", fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, period)
	}
	if !metric.Valid() {
		return "", "", fmt.Errorf("%w: unknown metric %q", ErrInvalidRequest, metric)
	}
	return period, metric, nil
}

// sortByMetric orders rows descending by metric. The sort is stable so
// ties keep the backend's order. Place is reassigned from 1.
func sortByMetric(rows []LeaderboardRow, metric Metric) []LeaderboardRow {
	out := make([]LeaderboardRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].value(metric) > out[j].value(metric) })
	for i := range out {
		out[i].Place = i + 1
	}
	return out
}

// Leaderboard fetches the board for req.Period, re-sorts it by req.Metric
// and keeps the first req.Top rows. An empty board is not an error.
func (s *Service) Leaderboard(ctx context.Context, req LeaderboardRequest) (Leaderboard, error) {
	period, metric, err := normalize(req.Period, req.Metric)
	if err != nil {
		return Leaderboard{}, err
	}
	if req.Top < 0 {
		return Leaderboard{}, fmt.Errorf("%w: top must be >= 0", ErrInvalidRequest)
	}
	if s.repo == nil {
		return Leaderboard{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListLeaderboard(ctx, period)
	if err != nil {
		return Leaderboard{}, err
	}
	rows = sortByMetric(rows, metric)
	if req.Top > 0 && len(rows) > req.Top {
		rows = rows[:req.Top]
	}
	return Leaderboard{Period: period, Metric: metric, Rows: rows}, nil
}

// MyStats loads the caller's row and their place on the metric-sorted board.
func (s *Service) MyStats(ctx context.Context, period Period, metric Metric) (MyStats, error) {
	period, metric, err := normalize(period, metric)
	if err != nil {
		return MyStats{}, err
	}
	if s.repo == nil {
		return MyStats{}, errors.New("reporting: repository not configured")
	}

	var (
		me   *LeaderboardRow
		rows []LeaderboardRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		me, err = s.repo.GetMyStats(gctx, period)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.repo.ListLeaderboard(gctx, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return MyStats{}, err
	}

	out := MyStats{Period: period, Metric: metric, Stats: me}
	if me == nil {
		return out, nil
	}
	for i, r := range sortByMetric(rows, metric) {
		if r.UserID == me.UserID {
			out.Place = i + 1
			break
		}
	}
	return out, nil
}

// CallHistory returns the caller's calls as the backend lists them.
func (s *Service) CallHistory(ctx context.Context) ([]CallRecord, error) {
	if s.repo == nil {
		return nil, errors.New("reporting: repository not configured")
	}
	out, err := s.repo.ListMyCalls(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []CallRecord{}
	}
	return out, nil
}

func (s *Service) CallsSummary(ctx context.Context) (CallsSummary, error) {
	rows, err := s.CallHistory(ctx)
	if err != nil {
		return CallsSummary{}, err
	}
	return summarize(rows), nil
}

func summarize(rows []CallRecord) CallsSummary {
	out := CallsSummary{ByStatus: map[string]int{}}
	var scoreSum float64
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.Duration
		out.ByStatus[string(c.Status)]++
		switch c.Status {
		case CallStatusAnalyzed:
			out.AnalyzedCalls++
			scoreSum += c.Score
		case CallStatusProcessing:
			out.ProcessingCalls++
		case CallStatusFailed:
			out.FailedCalls++
		}
	}
	if out.AnalyzedCalls > 0 {
		out.AverageScore = math.Round(scoreSum/float64(out.AnalyzedCalls)*10) / 10
	}
	return out
}

// Home loads the dashboard: all-time stats, the top three by total score
// and call history, concurrently. Only the stats fetch is required; the
// other sections degrade to empty with a warning.
func (s *Service) Home(ctx context.Context) (Home, error) {
	if s.repo == nil {
		return Home{}, errors.New("reporting: repository not configured")
	}

	var (
		me      *LeaderboardRow
		board   []LeaderboardRow
		history []CallRecord
		out     Home
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		me, err = s.repo.GetMyStats(gctx, PeriodAllTimeCompact)
		return err
	})

	var boardErr, historyErr error
	g.Go(func() error {
		board, boardErr = s.repo.ListLeaderboard(gctx, PeriodAllTimeCompact)
		return nil
	})
	g.Go(func() error {
		history, historyErr = s.repo.ListMyCalls(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Home{}, err
	}

	if boardErr != nil {
		s.log.Warn("home: leaderboard unavailable", "err", boardErr)
		out.Warnings = append(out.Warnings, "leaderboard unavailable")
	}
	if historyErr != nil {
		s.log.Warn("home: call history unavailable", "err", historyErr)
		out.Warnings = append(out.Warnings, "call history unavailable")
	}

	top := sortByMetric(board, MetricTotalScore)
	if len(top) > homeTopN {
		top = top[:homeTopN]
	}
	out.TopPerformers = top
	out.RecentCalls = history
	if out.RecentCalls == nil {
		out.RecentCalls = []CallRecord{}
	}

	out.Stats = me
	var stats LeaderboardRow
	if me != nil {
		stats = *me
	}
	out.Level = stats.TotalScore / pointsPerLevel
	out.LevelTitle = levelTitle(out.Level)
	out.CallsGoal = goal(stats.CallsMade, DailyCallsGoal)
	out.DealsGoal = goal(stats.DealsClosed, WeeklyDealGoal)
	out.Messages = motivation(me, out.Level)
	return out, nil
}

func goal(current, target int) Goal {
	pct := float64(current*100) / float64(target)
	if pct > 100 {
		pct = 100
	}
	return Goal{Current: current, Target: target, Percent: pct}
}

func levelTitle(level int) string {
	switch {
	case level >= 5:
		return "Sales Master"
	case level >= 3:
		return "Rising Star"
	default:
		return "Rookie"
	}
}

func motivation(me *LeaderboardRow, level int) []string {
	if me == nil {
		return []string{"Keep up the great work!"}
	}
	var out []string
	if left := DailyCallsGoal - me.CallsMade; left > 0 {
		out = append(out, fmt.Sprintf("You're only %d calls away from reaching today's goal. Keep going!", left))
	} else {
		out = append(out, "Amazing! You've exceeded your daily call goal. Great momentum!")
	}
	if me.DealsClosed > 0 {
		out = append(out, fmt.Sprintf("Excellent work! You've closed %d deals this week!", me.DealsClosed))
	}
	if me.TotalScore > 0 {
		out = append(out, fmt.Sprintf("Your total score of %d shows real progress. Keep building!", me.TotalScore))
	}
	if me.Upsells > 0 {
		out = append(out, fmt.Sprintf("Great upselling! You've achieved %d upsells this week!", me.Upsells))
	}
	out = append(out, fmt.Sprintf("You're currently level %d. Each call brings you closer to the next level!", level))
	return out
}
