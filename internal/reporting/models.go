package reporting

import "time"

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	// PeriodAllTime and PeriodAllTimeCompact are both accepted by the
	// backend and passed through unchanged.
	PeriodAllTime        Period = "all-time"
	PeriodAllTimeCompact Period = "alltime"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime, PeriodAllTimeCompact:
		return true
	default:
		return false
	}
}

type Metric string

const (
	MetricCallsMade   Metric = "calls-made"
	MetricDealsClosed Metric = "deals-closed"
	MetricUpsells     Metric = "upsells"
	MetricTotalScore  Metric = "total-score"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricCallsMade, MetricDealsClosed, MetricUpsells, MetricTotalScore:
		return true
	default:
		return false
	}
}

// LeaderboardRow is one ranked user as returned by the backend. Ranking
// itself is computed server-side.
type LeaderboardRow struct {
	Place       int    `json:"place,omitempty"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	CallsMade   int    `json:"callsMade"`
	DealsClosed int    `json:"dealsClosed"`
	Upsells     int    `json:"upsells"`
	TotalScore  int    `json:"totalScore"`
	Rank        string `json:"rank,omitempty"` // tier: challenger, gold
}

func (r LeaderboardRow) value(m Metric) int {
	switch m {
	case MetricDealsClosed:
		return r.DealsClosed
	case MetricUpsells:
		return r.Upsells
	case MetricTotalScore:
		return r.TotalScore
	default:
		return r.CallsMade
	}
}

type LeaderboardRequest struct {
	Period Period `form:"period"`
	Metric Metric `form:"metric"`
	// Top limits the rows returned; 0 means all.
	Top int `form:"top"`
}

type Leaderboard struct {
	Period Period           `json:"period"`
	Metric Metric           `json:"metric"`
	Rows   []LeaderboardRow `json:"rows"`
}

// MyStats is the caller's own row plus their place on the metric-sorted
// board. Stats is nil and Place 0 when the user is not ranked yet.
type MyStats struct {
	Period Period          `json:"period"`
	Metric Metric          `json:"metric"`
	Stats  *LeaderboardRow `json:"stats"`
	Place  int             `json:"place"`
}

type CallStatus string

const (
	CallStatusAnalyzed   CallStatus = "analyzed"
	CallStatusProcessing CallStatus = "processing"
	CallStatusFailed     CallStatus = "failed"
)

// CallRecord is one entry of the caller's call history.
type CallRecord struct {
	ID          string     `json:"_id"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Status      CallStatus `json:"status"`
	Score       float64    `json:"score,omitempty"`
	Sentiment   string     `json:"sentiment,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type CallsSummary struct {
	TotalCalls      int            `json:"totalCalls"`
	AnalyzedCalls   int            `json:"analyzedCalls"`
	ProcessingCalls int            `json:"processingCalls"`
	FailedCalls     int            `json:"failedCalls"`
	ByStatus        map[string]int `json:"byStatus"`

	// AverageScore is over analyzed calls only; 0 when there are none.
	AverageScore         float64 `json:"averageScore"`
	TotalDurationSeconds int     `json:"totalDurationSeconds"`
}

type Goal struct {
	Current int     `json:"current"`
	Target  int     `json:"target"`
	Percent float64 `json:"percent"`
}

// Home backs the dashboard landing view.
type Home struct {
	Stats         *LeaderboardRow  `json:"stats"`
	Level         int              `json:"level"`
	LevelTitle    string           `json:"levelTitle"`
	CallsGoal     Goal             `json:"callsGoal"`
	DealsGoal     Goal             `json:"dealsGoal"`
	TopPerformers []LeaderboardRow `json:"topPerformers"`
	RecentCalls   []CallRecord     `json:"recentCalls"`
	Messages      []string         `json:"messages"`

	// Warnings lists sections that could not be loaded; they are empty
	// rather than failing the whole view.
	Warnings []string `json:"warnings,omitempty"`
}
