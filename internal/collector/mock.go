package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// DemoUniverse is used with the mock provider when no universe is configured.
var DemoUniverse = []config.SymbolConfig{
	{Symbol: "AAPL", Sector: "tech"},
	{Symbol: "MSFT", Sector: "tech"},
	{Symbol: "NVDA", Sector: "tech"},
	{Symbol: "XOM", Sector: "energy"},
	{Symbol: "CVX", Sector: "energy"},
	{Symbol: "JPM", Sector: "financials"},
	{Symbol: "BAC", Sector: "financials"},
	{Symbol: "JNJ", Sector: "health"},
	{Symbol: "PFE", Sector: "health"},
	{Symbol: "UNH", Sector: "health"},
}

// MockFetcher returns controllable fixed data for development and testing.
// Series takes precedence; otherwise bars are generated deterministically per
// symbol, ending on End (or the last weekday before now when End is zero).
type MockFetcher struct {
	Price  float64
	End    time.Time
	Series map[string][]model.OHLCV
	Errs   map[string]error
	Scores []model.SectorScore
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errs[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Series[symbol]; ok {
		if len(bars) > n {
			bars = bars[len(bars)-n:]
		}
		return bars, nil
	}
	if m.Series != nil {
		return nil, fmt.Errorf("mock %s: %w", symbol, ErrSymbolNotFound)
	}
	end := m.End
	if end.IsZero() {
		end = lastWeekday(time.Now())
	}
	return GenerateBars(symbol, m.Price, end, n), nil
}

// FetchSectorScores returns the configured scores within [from, to].
func (m *MockFetcher) FetchSectorScores(_ context.Context, from, to time.Time) ([]model.SectorScore, error) {
	var out []model.SectorScore
	for _, s := range m.Scores {
		if s.Date.Before(model.Day(from)) || s.Date.After(model.Day(to)) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// GenerateBars produces count weekday bars ending on end. The path is a drifting
// sine wave seeded by the symbol name, so each symbol differs but repeats exactly.
func GenerateBars(symbol string, basePrice float64, end time.Time, count int) []model.OHLCV {
	if basePrice <= 0 {
		basePrice = 100
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := float64(h.Sum32()%1000) / 1000

	dates := make([]time.Time, count)
	d := model.Day(end)
	for i := count - 1; i >= 0; i-- {
		d = lastWeekday(d)
		dates[i] = d
		d = d.AddDate(0, 0, -1)
	}

	bars := make([]model.OHLCV, count)
	for i, day := range dates {
		x := float64(i)
		p := basePrice * (1 + 0.15*math.Sin(x/(17+seed*13)+seed*6) + 0.0004*x*(seed-0.4))
		open := p * (1 - 0.004*math.Sin(x*1.3+seed))
		bars[i] = model.OHLCV{
			Time:   day,
			Open:   open,
			High:   math.Max(open, p) * 1.006,
			Low:    math.Min(open, p) * 0.994,
			Close:  p,
			Volume: 1e6 * (1 + 0.3*math.Sin(x*0.7+seed*3)),
		}
	}
	return bars
}

func lastWeekday(t time.Time) time.Time {
	d := model.Day(t)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
