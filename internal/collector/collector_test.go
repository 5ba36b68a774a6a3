package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/logger"
	"BreadthSentinel/internal/model"
)

var end = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC) // a Friday

func testSource() config.DataSourceConfig {
	return config.DataSourceConfig{
		Provider:          "mock",
		Index:             "SPX500",
		HistoryBars:       60,
		Concurrency:       4,
		RequestsPerSecond: 1000,
		Burst:             1000,
		BreakerFailures:   2,
		BreakerCooldown:   time.Minute,
	}
}

func TestGenerateBars_DeterministicWeekdays(t *testing.T) {
	a := GenerateBars("AAPL", 100, end, 30)
	b := GenerateBars("AAPL", 100, end, 30)
	c := GenerateBars("MSFT", 100, end, 30)

	require.Len(t, a, 30)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[len(a)-1].Close, c[len(c)-1].Close)
	assert.True(t, a[len(a)-1].Time.Equal(end))
	for i, bar := range a {
		assert.NotEqual(t, time.Saturday, bar.Time.Weekday())
		assert.NotEqual(t, time.Sunday, bar.Time.Weekday())
		assert.GreaterOrEqual(t, bar.High, bar.Low)
		if i > 0 {
			assert.True(t, bar.Time.After(a[i-1].Time))
		}
	}
}

func TestCollector_LoadSkipsFailingSymbol(t *testing.T) {
	f := &MockFetcher{
		Price: 100,
		End:   end,
		Errs:  map[string]error{"BAD": errors.New("upstream 500")},
	}
	universe := []config.SymbolConfig{
		{Symbol: "AAPL", Sector: "tech"},
		{Symbol: "BAD", Sector: "tech"},
		{Symbol: "XOM", Sector: "energy"},
	}
	c := NewCollector(f, testSource(), universe, 20, logger.Nop())

	ds, err := c.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "SPX500", ds.Index.Symbol)
	assert.Len(t, ds.Index.Bars, 60)
	require.Len(t, ds.Symbols, 2)
	assert.Equal(t, "AAPL", ds.Symbols[0].Symbol)
	assert.Equal(t, "XOM", ds.Symbols[1].Symbol)
	require.Len(t, ds.Failures, 1)
	assert.Equal(t, "BAD", ds.Failures[0].Symbol)

	// No provider scores: derived from prices, 40 dates after the lookback x 2 sectors.
	assert.Len(t, ds.SectorScores, 80)
}

func TestCollector_LoadFailsWithoutIndex(t *testing.T) {
	f := &MockFetcher{Price: 100, End: end, Errs: map[string]error{"SPX500": errors.New("down")}}
	c := NewCollector(f, testSource(), []config.SymbolConfig{{Symbol: "AAPL"}}, 20, logger.Nop())

	_, err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestCollector_PrefersProviderScores(t *testing.T) {
	f := &MockFetcher{
		Price:  100,
		End:    end,
		Scores: []model.SectorScore{{Date: end, SectorID: "tech", Score: 104}},
	}
	c := NewCollector(f, testSource(), []config.SymbolConfig{{Symbol: "AAPL", Sector: "tech"}}, 20, logger.Nop())

	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.Scores, ds.SectorScores)
}

func TestDeriveSectorScores(t *testing.T) {
	d0 := time.Date(2024, 6, 24, 0, 0, 0, 0, time.UTC)
	mk := func(sym, sector string, closes ...float64) model.PriceSeries {
		s := model.PriceSeries{Symbol: sym, Sector: sector}
		for i, c := range closes {
			s.Bars = append(s.Bars, model.OHLCV{Time: d0.AddDate(0, 0, i), Close: c})
		}
		return s
	}
	series := []model.PriceSeries{
		mk("A", "tech", 100, 110, 120),
		mk("B", "tech", 100, 100, 90),
		mk("C", "energy", 50, 55),
		mk("D", "", 1, 2, 3),
	}
	dates := []time.Time{d0, d0.AddDate(0, 0, 1), d0.AddDate(0, 0, 2)}

	got := DeriveSectorScores(series, dates, 1)

	require.Len(t, got, 3)
	assert.Equal(t, "energy", got[0].SectorID)
	assert.InDelta(t, 110, got[0].Score, 1e-9)
	assert.Equal(t, "tech", got[1].SectorID)
	assert.InDelta(t, 105, got[1].Score, 1e-9)
	assert.True(t, got[2].Date.Equal(dates[2]))
	// (120/110 + 90/100) / 2 * 100
	assert.InDelta(t, (120.0/110+0.9)/2*100, got[2].Score, 1e-9)
}

type failingFetcher struct{ calls atomic.Int32 }

func (f *failingFetcher) Name() string { return "failing" }

func (f *failingFetcher) FetchDailyBars(context.Context, string, int) ([]model.OHLCV, error) {
	f.calls.Add(1)
	return nil, errors.New("boom")
}

func TestGuarded_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingFetcher{}
	g := NewGuarded(next, testSource(), logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := g.FetchDailyBars(context.Background(), "AAPL", 10)
		require.Error(t, err)
	}
	_, err := g.FetchDailyBars(context.Background(), "AAPL", 10)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), next.calls.Load())

	// A fetcher without sector support yields no scores.
	scores, err := g.FetchSectorScores(context.Background(), end, end)
	assert.NoError(t, err)
	assert.Nil(t, scores)
}

func TestCollector_UnknownSymbolsDoNotOpenBreaker(t *testing.T) {
	cfg := testSource()
	cfg.Concurrency = 1

	errs := make(map[string]error)
	var universe []config.SymbolConfig
	for i := 0; i < 3; i++ {
		sym := fmt.Sprintf("GONE%d", i)
		errs[sym] = fmt.Errorf("mock %s: status 404: %w", sym, ErrSymbolNotFound)
		universe = append(universe, config.SymbolConfig{Symbol: sym, Sector: "tech"})
	}
	for i := 0; i < 3; i++ {
		universe = append(universe, config.SymbolConfig{Symbol: fmt.Sprintf("OK%d", i), Sector: "tech"})
	}

	g := NewGuarded(&MockFetcher{Price: 100, End: end, Errs: errs}, cfg, logger.Nop())
	ds, err := NewCollector(g, cfg, universe, 20, logger.Nop()).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Symbols, 3)
	for i, s := range ds.Symbols {
		assert.Equal(t, fmt.Sprintf("OK%d", i), s.Symbol)
	}
	require.Len(t, ds.Failures, 3)
	for _, f := range ds.Failures {
		assert.ErrorIs(t, f.Err, ErrSymbolNotFound)
		assert.NotErrorIs(t, f.Err, gobreaker.ErrOpenState)
	}
}

func TestProviderHealthy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{fmt.Errorf("yahoo X: %w", ErrSymbolNotFound), true},
		{context.Canceled, true},
		{errors.New("status 503"), false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, providerHealthy(tt.err), "err=%v", tt.err)
	}
}

func TestYahooFetcher_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, logger.Nop())
	f.BaseURL = srv.URL

	_, err := f.FetchDailyBars(context.Background(), "DELISTED", 10)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/bars/daily":
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
			fmt.Fprintf(w, `[{"timestamp":%d,"open":2,"high":3,"low":1,"close":2.5,"volume":10},
				{"timestamp":%d,"open":1,"high":2,"low":0.5,"close":1.5,"volume":5}]`,
				end.Add(21*time.Hour).Unix(), end.AddDate(0, 0, -1).Add(21*time.Hour).Unix())
		case "/api/v1/sectors/scores":
			assert.Equal(t, "2024-06-28", r.URL.Query().Get("to"))
			fmt.Fprint(w, `[{"date":"2024-06-28","sector":"tech","score":101.5},{"date":"bad","sector":"x","score":1}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", time.Second, logger.Nop())

	bars, err := f.FetchDailyBars(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].Time.Equal(end))
	assert.Equal(t, 2.5, bars[1].Close)

	scores, err := f.FetchSectorScores(context.Background(), end.AddDate(0, 0, -5), end)
	require.NoError(t, err)
	assert.Equal(t, []model.SectorScore{{Date: end, SectorID: "tech", Score: 101.5}}, scores)
}

func TestRESTFetcher_NoSectorEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "", "", time.Second, logger.Nop())
	scores, err := f.FetchSectorScores(context.Background(), end, end)
	assert.NoError(t, err)
	assert.Nil(t, scores)

	_, err = f.FetchDailyBars(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestYahooFetcher_SkipsNullBarsAndTrims(t *testing.T) {
	d1 := end.AddDate(0, 0, -1).Add(14 * time.Hour).Unix()
	d2 := end.Add(14 * time.Hour).Unix()
	d0 := end.AddDate(0, 0, -2).Add(14 * time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%d,%d,%d],"indicators":{"quote":[{
			"open":[1,null,3],"high":[1.5,null,3.5],"low":[0.5,null,2.5],"close":[1.2,null,3.2],"volume":[10,null,30]}]}}]}}`,
			d0, d1, d2)
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second, logger.Nop())
	f.BaseURL = srv.URL

	bars, err := f.FetchDailyBars(context.Background(), "SPX500", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Time.Equal(end))
	assert.Equal(t, 3.2, bars[0].Close)
}
