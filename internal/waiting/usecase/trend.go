package usecase

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/internal/waiting/repository"
)

const (
	// TrendHistoryKey is the blob key of recorded daily points
	TrendHistoryKey = "waiting-trend-history"

	DefaultTrendDays = 14
	maxTrendDays     = 90
	trendThreshold   = 15.0
)

// TrendEstimator reports waiting debt over the last N days. Days with a
// recorded snapshot use it; other days are synthesized from a weekday or
// weekend baseline plus bounded noise.
type TrendEstimator struct {
	store repository.StateStore
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTrendEstimator creates an estimator. store may be nil to disable history.
func NewTrendEstimator(store repository.StateStore, rng *rand.Rand, now func() time.Time) *TrendEstimator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &TrendEstimator{store: store, rng: rng, now: now}
}

// Estimate builds the trend for the last days days, today included
func (e *TrendEstimator) Estimate(ctx context.Context, days int) domain.WaitingDebtTrend {
	if days <= 0 {
		days = DefaultTrendDays
	}
	days = min(days, maxTrendDays)

	history := e.history(ctx)
	today := dayOf(e.now())

	e.mu.Lock()
	points := make([]domain.TrendDataPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		if p, ok := history[date.Format(time.DateOnly)]; ok {
			points = append(points, p)
			continue
		}
		points = append(points, e.synthesize(date))
	}
	e.mu.Unlock()

	return SummarizeTrend(points)
}

// Record stores today's point from a refresh result
func (e *TrendEstimator) Record(ctx context.Context, data *domain.GroupedWaitingData) {
	if e.store == nil || data == nil {
		return
	}
	today := dayOf(e.now())
	history := e.history(ctx)
	history[today.Format(time.DateOnly)] = domain.TrendDataPoint{
		Date:           today,
		PeopleWaiting:  data.TotalPeopleWaiting,
		ItemCount:      data.TotalItems,
		TotalWaitHours: data.TotalWaitHours,
	}

	oldest := today.AddDate(0, 0, -maxTrendDays).Format(time.DateOnly)
	for k := range history {
		if k < oldest {
			delete(history, k)
		}
	}

	raw, err := json.Marshal(history)
	if err != nil {
		log.Printf("[Trend] Failed to encode history: %v", err)
		return
	}
	if err := e.store.Set(ctx, TrendHistoryKey, string(raw)); err != nil {
		log.Printf("[Trend] Failed to write history: %v", err)
	}
}

func (e *TrendEstimator) history(ctx context.Context) map[string]domain.TrendDataPoint {
	history := make(map[string]domain.TrendDataPoint)
	if e.store == nil {
		return history
	}
	raw, ok, err := e.store.Get(ctx, TrendHistoryKey)
	if err != nil {
		log.Printf("[Trend] Failed to read history: %v", err)
		return history
	}
	if !ok {
		return history
	}
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		log.Printf("[Trend] Discarding corrupt history: %v", err)
		return make(map[string]domain.TrendDataPoint)
	}
	return history
}

// synthesize must be called with e.mu held
func (e *TrendEstimator) synthesize(date time.Time) domain.TrendDataPoint {
	base := 8
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		base = 3
	}
	people := max(base+e.rng.Intn(5)-2, 0)
	items := people + e.rng.Intn(people+1)
	return domain.TrendDataPoint{
		Date:           date,
		PeopleWaiting:  people,
		ItemCount:      items,
		TotalWaitHours: items * (24 + e.rng.Intn(48)),
	}
}

// SummarizeTrend compares the second half of points to the first half.
// A change beyond ±15% is worsening or improving; anything else is stable.
func SummarizeTrend(points []domain.TrendDataPoint) domain.WaitingDebtTrend {
	trend := domain.WaitingDebtTrend{DataPoints: points, Trend: domain.TrendStable}
	if len(points) == 0 {
		trend.DataPoints = []domain.TrendDataPoint{}
		return trend
	}

	total := 0
	peak := points[0]
	for _, p := range points {
		total += p.PeopleWaiting
		if p.PeopleWaiting > peak.PeopleWaiting {
			peak = p
		}
	}
	trend.AveragePeopleWaiting = float64(total) / float64(len(points))
	trend.PeakDay = peak.Date.Weekday().String()

	mid := len(points) / 2
	if mid == 0 {
		return trend
	}
	first := averagePeople(points[:mid])
	second := averagePeople(points[mid:])

	switch {
	case first == 0 && second > 0:
		trend.Trend = domain.TrendWorsening
	case first == 0:
		trend.Trend = domain.TrendStable
	default:
		change := (second - first) / first * 100
		if change > trendThreshold {
			trend.Trend = domain.TrendWorsening
		} else if change < -trendThreshold {
			trend.Trend = domain.TrendImproving
		}
	}
	return trend
}

func averagePeople(points []domain.TrendDataPoint) float64 {
	total := 0
	for _, p := range points {
		total += p.PeopleWaiting
	}
	return float64(total) / float64(len(points))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
