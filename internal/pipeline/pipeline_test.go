package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/logger"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/recorder"
)

var end = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

var sectors = []string{"energy", "health", "tech"}

func dataset(symbols, bars int) *collector.Dataset {
	ds := &collector.Dataset{
		Index: model.PriceSeries{Symbol: "SPX500", Bars: collector.GenerateBars("SPX500", 4500, end, bars)},
	}
	for i := 0; i < symbols; i++ {
		sym := fmt.Sprintf("S%02d", i)
		ds.Symbols = append(ds.Symbols, model.PriceSeries{
			Symbol: sym,
			Sector: sectors[i%len(sectors)],
			Bars:   collector.GenerateBars(sym, 50+float64(i)*10, end, bars),
		})
	}
	dates := make([]time.Time, len(ds.Index.Bars))
	for i, b := range ds.Index.Bars {
		dates[i] = b.Time
	}
	ds.SectorScores = collector.DeriveSectorScores(ds.Symbols, dates, 20)
	return ds
}

func engine(workers int) config.EngineConfig {
	cfg := config.DefaultEngine()
	cfg.Workers = workers
	return cfg
}

func marshal(t *testing.T, res *Result) string {
	t.Helper()
	data, err := json.Marshal(struct {
		State   *model.MarketState
		Sectors []model.SectorRank
		Alerts  []model.AlertRecord
	}{res.State, res.Sectors, res.Alerts})
	require.NoError(t, err)
	return string(data)
}

func TestClassify_IdempotentAcrossRunsAndWorkers(t *testing.T) {
	ctx := context.Background()

	first, err := NewOrchestrator(engine(1), logger.Nop()).Classify(ctx, dataset(12, 240), end, AllSteps)
	require.NoError(t, err)
	second, err := NewOrchestrator(engine(8), logger.Nop()).Classify(ctx, dataset(12, 240), time.Time{}, AllSteps)
	require.NoError(t, err)

	require.NotNil(t, first.State)
	assert.True(t, first.State.Date.Equal(end))
	assert.Len(t, first.Sectors, len(sectors))
	assert.Equal(t, []string{"market", "sectors", "alerts"}, first.Report.Steps)
	assert.False(t, first.Report.Fatal)
	assert.Equal(t, 12, first.Report.SymbolsProcessed)
	assert.Equal(t, len(first.Alerts), first.Report.AlertsEmitted)

	assert.Equal(t, marshal(t, first), marshal(t, second))
}

func TestClassify_MarketStateInvariants(t *testing.T) {
	res, err := NewOrchestrator(engine(4), logger.Nop()).Classify(context.Background(), dataset(12, 240), end, []Step{StepMarket})
	require.NoError(t, err)
	s := res.State
	require.NotNil(t, s)

	assert.Contains(t, []int{0, 20, 40, 60, 80, 100}, s.ExposurePct)
	assert.Contains(t, model.AllActionSignals, s.Signal)
	assert.Equal(t, s.Breadth.UniverseSize, s.Breadth.AdvancingCount+s.Breadth.DecliningCount)
	if s.Breadth.ConfirmedUptrend() {
		assert.Nil(t, s.BottomStage)
	}
	if s.Regime == model.RegimeBearish {
		assert.Zero(t, s.ExposurePct)
	}
	assert.Nil(t, s.Divergence)
	assert.Nil(t, res.Alerts)
	assert.Nil(t, res.Sectors)
}

func TestClassify_MissingIndexBarIsFatal(t *testing.T) {
	ds := dataset(6, 120)
	ds.Index.Bars = ds.Index.Bars[:len(ds.Index.Bars)-1]

	res, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, AllSteps)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingUpstream))
	assert.True(t, res.Report.Fatal)
	assert.NotEmpty(t, res.Report.FatalError)
	assert.Nil(t, res.State)
	assert.Nil(t, res.Alerts)
}

func TestClassify_NoSectorScoresIsFatal(t *testing.T) {
	ds := dataset(6, 120)
	ds.SectorScores = nil

	_, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepSectors})
	assert.ErrorIs(t, err, ErrMissingUpstream)

	// Skipping the step avoids the dataset entirely.
	res, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepMarket})
	require.NoError(t, err)
	assert.NotNil(t, res.State)
}

func TestClassify_ShortHistoryIsIsolatedPerSymbol(t *testing.T) {
	ds := dataset(6, 260)
	ds.Symbols = append(ds.Symbols, model.PriceSeries{
		Symbol: "SHORT",
		Sector: "tech",
		Bars:   collector.GenerateBars("SHORT", 80, end, 199),
	})

	res, err := NewOrchestrator(engine(4), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepAlerts})
	require.NoError(t, err)

	require.Len(t, res.Report.Skips, 1)
	sk := res.Report.Skips[0]
	assert.Equal(t, "SHORT", sk.Symbol)
	assert.Equal(t, string(model.DetectorMACross), sk.Detector)
	assert.Equal(t, model.ReasonMissingHistory, sk.Reason)
	assert.Equal(t, 7, res.Report.SymbolsProcessed)
	assert.Zero(t, res.Report.SymbolsSkipped)

	for _, a := range res.Alerts {
		if a.Symbol == "SHORT" && a.Detector == model.DetectorMACross {
			assert.NotEqual(t, 200, a.Payload["period"])
		}
	}
}

func TestClassify_InvalidValueExcludedFromBreadth(t *testing.T) {
	ds := dataset(6, 120)
	last := len(ds.Symbols[2].Bars) - 1
	ds.Symbols[2].Bars[last].Close = -1

	res, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepMarket})
	require.NoError(t, err)
	require.NotNil(t, res.State)

	assert.Equal(t, 5, res.State.Breadth.UniverseSize)
	assert.Equal(t, 5, res.State.Breadth.Eligible20)
	assert.Equal(t, 1, res.Report.SymbolsSkipped)
	require.Len(t, res.Report.Skips, 1)
	assert.Equal(t, model.ReasonInvalidValue, res.Report.Skips[0].Reason)
	assert.Equal(t, "S02", res.Report.Skips[0].Symbol)
}

func TestClassify_NotEnoughBreadthHistorySkipsMarket(t *testing.T) {
	ds := dataset(4, 8)

	res, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepMarket})
	require.NoError(t, err)
	assert.Nil(t, res.State)
	assert.False(t, res.Report.Fatal)
	require.Len(t, res.Report.Skips, 1)
	assert.Equal(t, "market", res.Report.Skips[0].Step)
	assert.Equal(t, model.ReasonMissingHistory, res.Report.Skips[0].Reason)
}

func TestClassify_SymbolWithoutBarOnDate(t *testing.T) {
	ds := dataset(4, 120)
	ds.Symbols[0].Bars = ds.Symbols[0].Bars[:len(ds.Symbols[0].Bars)-1]
	ds.Failures = []collector.Failure{{Symbol: "GONE", Err: errors.New("404")}}

	res, err := NewOrchestrator(engine(2), logger.Nop()).Classify(context.Background(), ds, end, []Step{StepMarket})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Report.SymbolsSkipped)
	assert.Equal(t, 3, res.Report.SymbolsProcessed)
	assert.Equal(t, model.ReasonFetchFailed, res.Report.Skips[0].Reason)
	assert.Equal(t, model.ReasonNoBar, res.Report.Skips[1].Reason)
	assert.Equal(t, 3, res.State.Breadth.UniverseSize)
}

func TestSelectSteps(t *testing.T) {
	tests := []struct {
		name    string
		skip    []string
		only    string
		want    []Step
		wantErr bool
	}{
		{"default", nil, "", AllSteps, false},
		{"skip one", []string{"sectors"}, "", []Step{StepMarket, StepAlerts}, false},
		{"skip is case insensitive", []string{"ALERTS", " market"}, "", []Step{StepSectors}, false},
		{"only", nil, "alerts", []Step{StepAlerts}, false},
		{"both", []string{"market"}, "alerts", nil, true},
		{"unknown", []string{"fund"}, "", nil, true},
		{"everything skipped", []string{"market", "sectors", "alerts"}, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectSteps(tt.skip, tt.only)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeRecorder struct {
	recorder.NoopRecorder
	states []*model.MarketState
	alerts int
	runs   []model.RunReport
}

func (f *fakeRecorder) SaveMarketState(_ context.Context, s *model.MarketState) error {
	f.states = append(f.states, s)
	return nil
}

func (f *fakeRecorder) RecordAlerts(_ context.Context, records []model.AlertRecord) error {
	f.alerts += len(records)
	return nil
}

func (f *fakeRecorder) SaveRun(_ context.Context, rep model.RunReport) error {
	f.runs = append(f.runs, rep)
	return nil
}

type fakePublisher struct{ states, sectors, alerts int }

func (f *fakePublisher) PublishState(context.Context, *model.MarketState) error {
	f.states++
	return nil
}

func (f *fakePublisher) PublishSectors(context.Context, []model.SectorRank) error {
	f.sectors++
	return nil
}

func (f *fakePublisher) PublishAlerts(context.Context, []model.AlertRecord) error {
	f.alerts++
	return nil
}

type fakeObserver struct{ reports []model.RunReport }

func (f *fakeObserver) ObserveRun(rep model.RunReport, _ *model.MarketState) {
	f.reports = append(f.reports, rep)
}

type fakeSender struct{ messages []string }

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func newTestRunner(fetcher collector.Fetcher) (*Runner, *fakeRecorder, *fakePublisher, *fakeObserver, *fakeSender) {
	src := config.DataSourceConfig{Provider: "mock", Index: "SPX500", HistoryBars: 240, Concurrency: 4}
	var universe []config.SymbolConfig
	for i := 0; i < 9; i++ {
		universe = append(universe, config.SymbolConfig{Symbol: fmt.Sprintf("S%02d", i), Sector: sectors[i%3]})
	}
	loader := collector.NewCollector(fetcher, src, universe, 20, logger.Nop())

	rec, pub, obs, snd := &fakeRecorder{}, &fakePublisher{}, &fakeObserver{}, &fakeSender{}
	r := NewRunner(loader, NewOrchestrator(engine(4), logger.Nop()), rec, logger.Nop())
	r.Publisher, r.Observer, r.Sender = pub, obs, snd
	return r, rec, pub, obs, snd
}

func TestRunner_Success(t *testing.T) {
	r, rec, pub, obs, snd := newTestRunner(&collector.MockFetcher{Price: 100, End: end})

	res, err := r.Run(context.Background(), end, AllSteps)
	require.NoError(t, err)

	_, perr := uuid.Parse(res.Report.RunID)
	assert.NoError(t, perr)
	assert.Len(t, rec.states, 1)
	assert.Equal(t, len(res.Alerts), rec.alerts)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.Report.RunID, rec.runs[0].RunID)
	assert.Equal(t, 1, pub.states)
	assert.Equal(t, 1, pub.sectors)
	assert.Equal(t, 1, pub.alerts)
	require.Len(t, obs.reports, 1)
	assert.False(t, obs.reports[0].Fatal)
	require.Len(t, snd.messages, 1)
	assert.Contains(t, snd.messages[0], "BreadthSentinel")
}

func TestRunner_MissingIndexAbortsDate(t *testing.T) {
	f := &collector.MockFetcher{Price: 100, End: end, Errs: map[string]error{"SPX500": errors.New("feed down")}}
	r, rec, pub, obs, snd := newTestRunner(f)

	res, err := r.Run(context.Background(), end, AllSteps)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingUpstream)
	assert.True(t, res.Report.Fatal)
	assert.Empty(t, rec.states)
	assert.Zero(t, rec.alerts)
	require.Len(t, rec.runs, 1)
	assert.True(t, rec.runs[0].Fatal)
	assert.Zero(t, pub.states+pub.sectors+pub.alerts)
	require.Len(t, obs.reports, 1)
	require.Len(t, snd.messages, 1)
	assert.Contains(t, snd.messages[0], "Run aborted")
}

func TestRunner_UnknownTickersDoNotAbortDate(t *testing.T) {
	errs := make(map[string]error)
	for _, sym := range []string{"S00", "S01", "S02"} {
		errs[sym] = fmt.Errorf("%s: %w", sym, collector.ErrSymbolNotFound)
	}
	guard := config.DataSourceConfig{RequestsPerSecond: 1000, Burst: 1000, BreakerFailures: 2, BreakerCooldown: time.Minute}
	f := collector.NewGuarded(&collector.MockFetcher{Price: 100, End: end, Errs: errs}, guard, logger.Nop())
	r, rec, _, _, _ := newTestRunner(f)

	res, err := r.Run(context.Background(), end, AllSteps)
	require.NoError(t, err)

	assert.False(t, res.Report.Fatal)
	require.NotNil(t, res.State)
	assert.Equal(t, 3, res.Report.SymbolsSkipped)
	failed := 0
	for _, sk := range res.Report.Skips {
		if sk.Reason != model.ReasonFetchFailed {
			continue
		}
		failed++
		assert.NotContains(t, sk.Detail, "circuit breaker")
	}
	assert.Equal(t, 3, failed)
	assert.Len(t, rec.states, 1)
}
