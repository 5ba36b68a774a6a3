package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/notifier"
	"BreadthSentinel/internal/recorder"
)

// Loader provides the dataset of a run.
type Loader interface {
	Load(ctx context.Context) (*collector.Dataset, error)
}

// Publisher mirrors outputs for external consumers.
type Publisher interface {
	PublishState(ctx context.Context, state *model.MarketState) error
	PublishSectors(ctx context.Context, ranks []model.SectorRank) error
	PublishAlerts(ctx context.Context, latest []model.AlertRecord) error
}

// Observer receives every finished run, fatal ones included.
type Observer interface {
	ObserveRun(rep model.RunReport, state *model.MarketState)
}

// Sender delivers the formatted daily report.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Runner executes load, classify, persist, publish and notify for one date.
// Publisher, Observer and Sender are optional.
type Runner struct {
	Loader       Loader
	Orchestrator *Orchestrator
	Recorder     recorder.Recorder
	Publisher    Publisher
	Observer     Observer
	Sender       Sender
	log          zerolog.Logger
}

// NewRunner creates a Runner. A nil recorder stores nothing.
func NewRunner(loader Loader, orch *Orchestrator, rec recorder.Recorder, log zerolog.Logger) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Runner{
		Loader:       loader,
		Orchestrator: orch,
		Recorder:     rec,
		log:          log.With().Str("component", "runner").Logger(),
	}
}

// Run processes date (zero for the latest available) with the given steps.
// The returned error wraps ErrMissingUpstream when the date was aborted.
func (r *Runner) Run(ctx context.Context, date time.Time, steps []Step) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()
	log.Info().Time("date", date).Interface("steps", steps).Msg("run started")

	res, err := r.classify(ctx, date, steps)
	if err == nil {
		err = r.persist(ctx, res)
	}
	res.Report.RunID = runID
	res.Report.Duration = time.Since(start)

	if rerr := r.Recorder.SaveRun(ctx, res.Report); rerr != nil {
		log.Error().Err(rerr).Msg("save run log")
	}
	if r.Observer != nil {
		r.Observer.ObserveRun(res.Report, res.State)
	}
	if err == nil {
		r.publish(ctx, res, log)
	}
	r.notify(ctx, res, log)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("processed", res.Report.SymbolsProcessed).
		Int("skipped", res.Report.SymbolsSkipped).
		Int("alerts", res.Report.AlertsEmitted).
		Bool("fatal", res.Report.Fatal).
		Dur("duration", res.Report.Duration).
		Msg("run finished")
	return res, err
}

func (r *Runner) classify(ctx context.Context, date time.Time, steps []Step) (*Result, error) {
	ds, err := r.Loader.Load(ctx)
	if err != nil {
		if errors.Is(err, collector.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %v", ErrMissingUpstream, err)
		}
		rep := model.RunReport{Date: model.Day(date), Fatal: true, FatalError: err.Error(), Skips: []model.RunSkip{}}
		if date.IsZero() {
			rep.Date = time.Time{}
		}
		return &Result{Report: rep}, err
	}
	return r.Orchestrator.Classify(ctx, ds, date, steps)
}

// persist writes every output of the run; nothing is written for an aborted date.
func (r *Runner) persist(ctx context.Context, res *Result) error {
	if res.State != nil {
		if err := r.Recorder.SaveMarketState(ctx, res.State); err != nil {
			return err
		}
	}
	if err := r.Recorder.SaveSectorRanks(ctx, res.Sectors); err != nil {
		return err
	}
	return r.Recorder.RecordAlerts(ctx, res.Alerts)
}

func (r *Runner) publish(ctx context.Context, res *Result, log zerolog.Logger) {
	if r.Publisher == nil {
		return
	}
	if res.State != nil {
		if err := r.Publisher.PublishState(ctx, res.State); err != nil {
			log.Warn().Err(err).Msg("publish state")
		}
	}
	if res.Sectors != nil {
		if err := r.Publisher.PublishSectors(ctx, res.Sectors); err != nil {
			log.Warn().Err(err).Msg("publish sectors")
		}
	}
	if res.Alerts == nil {
		return
	}
	latest, err := r.Recorder.LatestAlerts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("read latest alerts")
		return
	}
	if latest == nil {
		latest = model.LatestAlerts(res.Alerts)
	}
	if err := r.Publisher.PublishAlerts(ctx, latest); err != nil {
		log.Warn().Err(err).Msg("publish alerts")
	}
}

func (r *Runner) notify(ctx context.Context, res *Result, log zerolog.Logger) {
	if r.Sender == nil {
		return
	}
	msg := notifier.FormatDailyReport(res.State, res.Sectors, res.Alerts, res.Report)
	if err := r.Sender.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("send daily report")
	}
}
