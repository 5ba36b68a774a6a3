package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"BreadthSentinel/internal/notifier"
	"BreadthSentinel/internal/pipeline"
	"BreadthSentinel/internal/recorder"
)

// Runner executes one classification run.
type Runner interface {
	Run(ctx context.Context, date time.Time, steps []pipeline.Step) (*pipeline.Result, error)
}

// Scheduler triggers the daily run on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Recorder recorder.Recorder
	Steps    []pipeline.Step
	Ctx      context.Context

	running  sync.Mutex
	mu       sync.Mutex
	stopping bool
	tasks    sync.WaitGroup
	log      zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, rec recorder.Recorder, steps []pipeline.Step, log zerolog.Logger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Recorder: rec,
		Steps:    steps,
		Ctx:      ctx,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the daily run.
func (s *Scheduler) Register(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, func() { s.dailyTask() }); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for scheduled and manual runs to finish.
// RunNow is a no-op afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	<-s.Cron.Stop().Done()
	s.tasks.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow starts the daily task in the background (manual trigger / run on start).
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		s.log.Warn().Msg("scheduler stopping, manual run ignored")
		return
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.dailyTask()
	}()
}

// dailyTask runs the latest available date. A trigger that arrives while a
// run is in progress is dropped.
func (s *Scheduler) dailyTask() bool {
	if !s.running.TryLock() {
		s.log.Warn().Msg("previous run still in progress, trigger skipped")
		return false
	}
	defer s.running.Unlock()

	s.log.Info().Msg("running daily task")
	if _, err := s.Runner.Run(s.Ctx, time.Time{}, s.Steps); err != nil {
		s.log.Error().Err(err).Msg("daily run failed")
	}
	return true
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	name := ""
	if f := strings.Fields(command); len(f) > 0 {
		name = strings.ToLower(f[0])
	}
	switch name {
	case "/run":
		s.RunNow()
		return "⏳ Run started, the report follows when it finishes."
	case "/status":
		state, err := s.Recorder.LatestMarketState(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("read latest market state")
			return "❌ Could not read the latest market state."
		}
		if state == nil {
			return "No market state recorded yet."
		}
		return fmt.Sprintf("📊 <b>%s</b>\n%s", state.Date.Format("2006-01-02"), notifier.FormatStatus(state))
	case "/alerts":
		latest, err := s.Recorder.LatestAlerts(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("read latest alerts")
			return "❌ Could not read the latest alerts."
		}
		return notifier.FormatAlerts(latest)
	default:
		return "Available commands:\n• /status latest market state\n• /alerts latest alert per symbol and detector\n• /run classify the latest date now"
	}
}
