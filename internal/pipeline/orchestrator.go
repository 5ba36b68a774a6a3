// Package pipeline runs the daily classification: market state, sector
// rotation and per-symbol alerts over one loaded dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"BreadthSentinel/internal/alerts"
	"BreadthSentinel/internal/breadth"
	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/rotation"
	"BreadthSentinel/internal/strategy"
)

var (
	// ErrMissingUpstream aborts a date: a dataset the run cannot do without is absent.
	ErrMissingUpstream = errors.New("missing upstream dataset")
	// ErrInvalidValue marks a symbol excluded from the breadth aggregates.
	ErrInvalidValue = breadth.ErrInvalidValue
)

// Result holds the outputs of one date. Fields of steps that did not run stay empty.
type Result struct {
	State   *model.MarketState
	Sectors []model.SectorRank
	Alerts  []model.AlertRecord
	Report  model.RunReport
}

// Orchestrator wires the classifiers for one engine configuration.
type Orchestrator struct {
	cfg       config.EngineConfig
	agg       *breadth.Aggregator
	regime    *breadth.RegimeClassifier
	bottom    *breadth.BottomDetector
	rotation  *rotation.Classifier
	detectors []alerts.Detector
	log       zerolog.Logger
}

// NewOrchestrator creates an Orchestrator with the default detector set.
func NewOrchestrator(cfg config.EngineConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		agg:       breadth.NewAggregator(),
		regime:    breadth.NewRegimeClassifier(cfg.Regime),
		bottom:    breadth.NewBottomDetector(cfg.Bottom),
		rotation:  rotation.NewClassifier(cfg.Sectors),
		detectors: alerts.Defaults(cfg.Alerts),
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Classify runs steps for date over ds. A zero date means the last index bar.
// When a required dataset is missing the returned error wraps
// ErrMissingUpstream, the report is marked fatal and no outputs are returned.
func (o *Orchestrator) Classify(ctx context.Context, ds *collector.Dataset, date time.Time, steps []Step) (*Result, error) {
	if date.IsZero() {
		date = ds.Index.LastDate()
	}
	target := model.Day(date)
	res := &Result{Report: model.RunReport{Date: target, Skips: []model.RunSkip{}}}
	run := &runState{res: res, skipped: make(map[string]bool)}

	if target.IsZero() {
		return o.abort(run, fmt.Errorf("%w: index %s has no bars", ErrMissingUpstream, ds.Index.Symbol))
	}

	for _, f := range ds.Failures {
		run.skipSymbol(f.Symbol, "load", model.ReasonFetchFailed, f.Err)
	}
	for _, s := range ds.Symbols {
		if s.IndexOf(target) < 0 {
			run.skipSymbol(s.Symbol, "load", model.ReasonNoBar, nil)
		}
	}

	for _, step := range steps {
		var err error
		switch step {
		case StepMarket:
			err = o.market(ds, target, run)
		case StepSectors:
			err = o.sectors(ds, target, run)
		case StepAlerts:
			err = o.alerts(ctx, ds, target, run)
		default:
			err = fmt.Errorf("unknown step %q", step)
		}
		if err != nil {
			return o.abort(run, err)
		}
		res.Report.Steps = append(res.Report.Steps, string(step))
	}

	res.Report.SymbolsSkipped = len(run.skipped)
	res.Report.SymbolsProcessed = len(ds.Symbols) + len(ds.Failures) - len(run.skipped)
	res.Report.AlertsEmitted = len(res.Alerts)
	return res, nil
}

func (o *Orchestrator) abort(run *runState, err error) (*Result, error) {
	res := run.res
	res.State, res.Sectors, res.Alerts = nil, nil, nil
	res.Report.Fatal = true
	res.Report.FatalError = err.Error()
	res.Report.SymbolsSkipped = len(run.skipped)
	o.log.Error().Err(err).Time("date", res.Report.Date).Msg("date aborted")
	return res, err
}

// market computes breadth over the trailing history, the index regime, the
// bottom stage and the action signal.
func (o *Orchestrator) market(ds *collector.Dataset, target time.Time, run *runState) error {
	if ds.Index.IndexOf(target) < 0 {
		return fmt.Errorf("%w: index %s has no bar on %s", ErrMissingUpstream, ds.Index.Symbol, target.Format(model.DateLayout))
	}
	indexBars := ds.Index.Until(target)
	need := o.bottom.HistoryDates()
	if len(indexBars) < need {
		run.skipStep(StepMarket, fmt.Errorf("need %d breadth dates, index has %d: %w", need, len(indexBars), calculator.ErrNotEnoughData))
		o.log.Warn().Int("need", need).Int("have", len(indexBars)).Msg("market step skipped: not enough history")
		return nil
	}

	mas := movingAverages(ds.Symbols)
	history := make([]model.BreadthSnapshot, 0, need)
	var excluded []breadth.Exclusion
	for i, bar := range indexBars[len(indexBars)-need:] {
		obs := observations(ds.Symbols, mas, model.Day(bar.Time))
		snap, excl := o.agg.Aggregate(bar.Time, obs)
		history = append(history, snap)
		if i == need-1 {
			if len(obs) == 0 {
				return fmt.Errorf("%w: no universe symbol has a bar on %s", ErrMissingUpstream, target.Format(model.DateLayout))
			}
			excluded = excl
		}
	}
	for _, e := range excluded {
		run.skipSymbol(e.Symbol, string(StepMarket), model.ReasonInvalidValue, e.Err)
		o.log.Warn().Err(e.Err).Str("symbol", e.Symbol).Msg("symbol excluded from breadth")
	}

	today := history[len(history)-1]
	index, regime, err := o.regime.Detect(target, indexBars)
	if err != nil {
		run.skipStep(StepMarket, err)
		o.log.Warn().Err(err).Msg("market step skipped: regime unavailable")
		return nil
	}
	fast, slow, err := o.bottom.Windows(history)
	if err != nil {
		run.skipStep(StepMarket, err)
		o.log.Warn().Err(err).Msg("market step skipped: higher-low windows unavailable")
		return nil
	}
	stage := o.bottom.Stage(today, fast, slow)
	decision := strategy.Evaluate(regime, today, stage, fast)

	run.res.State = &model.MarketState{
		Date:          target,
		Index:         index,
		Breadth:       today,
		Regime:        regime,
		BottomStage:   stage,
		FastWindow:    fast,
		SlowWindow:    slow,
		Signal:        decision.Signal,
		ExposurePct:   decision.ExposurePct,
		WeightedScore: decision.WeightedScore,
	}
	o.log.Info().
		Str("regime", string(regime)).
		Str("stage", run.res.State.StageString()).
		Str("signal", string(decision.Signal)).
		Int("exposure", decision.ExposurePct).
		Float64("score", decision.WeightedScore).
		Msg("market state classified")
	return nil
}

func (o *Orchestrator) sectors(ds *collector.Dataset, target time.Time, run *runState) error {
	ranks, skips, err := o.rotation.Classify(target, ds.SectorScores)
	if errors.Is(err, rotation.ErrNoScores) {
		return fmt.Errorf("%w: %v", ErrMissingUpstream, err)
	}
	if err != nil {
		return err
	}
	for _, s := range skips {
		run.res.Report.Skips = append(run.res.Report.Skips, model.RunSkip{
			Symbol: s.SectorID,
			Step:   string(StepSectors),
			Reason: model.ReasonMissingHistory,
			Detail: s.Err.Error(),
		})
		o.log.Warn().Err(s.Err).Str("sector", s.SectorID).Msg("sector skipped")
	}
	run.res.Sectors = ranks
	return nil
}

type symbolAlerts struct {
	records []model.AlertRecord
	skips   []model.RunSkip
}

// alerts runs every detector per symbol on a bounded worker pool. Results land
// in a slice indexed like ds.Symbols so the output order never depends on
// scheduling.
func (o *Orchestrator) alerts(ctx context.Context, ds *collector.Dataset, target time.Time, run *runState) error {
	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]symbolAlerts, len(ds.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range ds.Symbols {
		s := &ds.Symbols[i]
		if s.IndexOf(target) < 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = o.detect(s, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var records []model.AlertRecord
	for _, r := range out {
		records = append(records, r.records...)
		for _, sk := range r.skips {
			run.res.Report.Skips = append(run.res.Report.Skips, sk)
			o.log.Warn().Str("symbol", sk.Symbol).Str("detector", sk.Detector).Str("reason", sk.Reason).
				Str("detail", sk.Detail).Msg("detector skipped")
		}
	}
	model.SortAlerts(records)
	if records == nil {
		records = []model.AlertRecord{}
	}
	run.res.Alerts = records
	o.log.Info().Int("alerts", len(records)).Msg("alert detection finished")
	return nil
}

func (o *Orchestrator) detect(s *model.PriceSeries, target time.Time) symbolAlerts {
	var out symbolAlerts
	in := alerts.NewInput(s.Symbol, target, s.Until(target), o.cfg.Alerts)
	for _, d := range o.detectors {
		recs, err := d.Detect(in)
		out.records = append(out.records, recs...)
		if err == nil {
			continue
		}
		reason := model.ReasonDetectorError
		if errors.Is(err, alerts.ErrMissingHistory) {
			reason = model.ReasonMissingHistory
		}
		out.skips = append(out.skips, model.RunSkip{
			Symbol:   s.Symbol,
			Step:     string(StepAlerts),
			Detector: string(d.Type()),
			Reason:   reason,
			Detail:   err.Error(),
		})
	}
	return out
}

// runState accumulates the report while steps run.
type runState struct {
	res     *Result
	skipped map[string]bool
}

func (r *runState) skipSymbol(symbol, step, reason string, err error) {
	sk := model.RunSkip{Symbol: symbol, Step: step, Reason: reason}
	if err != nil {
		sk.Detail = err.Error()
	}
	r.res.Report.Skips = append(r.res.Report.Skips, sk)
	r.skipped[symbol] = true
}

func (r *runState) skipStep(step Step, err error) {
	r.res.Report.Skips = append(r.res.Report.Skips, model.RunSkip{
		Step:   string(step),
		Reason: model.ReasonMissingHistory,
		Detail: err.Error(),
	})
}

// movingAverages computes the SMA series of every breadth period per symbol.
// A nil series means the symbol is shorter than the period.
func movingAverages(series []model.PriceSeries) [][3][]float64 {
	out := make([][3][]float64, len(series))
	for i, s := range series {
		closes := model.Closes(s.Bars)
		for k, p := range breadth.Periods {
			if sma, err := calculator.SMASeries(closes, p); err == nil {
				out[i][k] = sma
			}
		}
	}
	return out
}

// observations builds the breadth inputs of every symbol with a bar on day.
func observations(series []model.PriceSeries, mas [][3][]float64, day time.Time) []breadth.Observation {
	obs := make([]breadth.Observation, 0, len(series))
	for i := range series {
		s := &series[i]
		j := s.IndexOf(day)
		if j < 0 {
			continue
		}
		o := breadth.Observation{
			Symbol:    s.Symbol,
			Close:     s.Bars[j].Close,
			PrevClose: math.NaN(),
			Bars:      j + 1,
		}
		if j > 0 {
			o.PrevClose = s.Bars[j-1].Close
		}
		for k := range breadth.Periods {
			o.MA[k] = math.NaN()
			if mas[i][k] != nil {
				o.MA[k] = mas[i][k][j]
			}
		}
		obs = append(obs, o)
	}
	return obs
}
