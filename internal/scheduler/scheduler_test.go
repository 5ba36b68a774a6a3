package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"BreadthSentinel/internal/logger"
	"BreadthSentinel/internal/model"
	"BreadthSentinel/internal/pipeline"
	"BreadthSentinel/internal/recorder"
)

type countingRunner struct{ calls atomic.Int32 }

func (r *countingRunner) Run(context.Context, time.Time, []pipeline.Step) (*pipeline.Result, error) {
	r.calls.Add(1)
	return &pipeline.Result{}, nil
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(context.Context, time.Time, []pipeline.Step) (*pipeline.Result, error) {
	close(r.started)
	<-r.release
	return &pipeline.Result{}, nil
}

type stateRecorder struct {
	recorder.NoopRecorder
	state *model.MarketState
}

func (r *stateRecorder) LatestMarketState(context.Context) (*model.MarketState, error) {
	return r.state, nil
}

func TestDailyTask_SkipsWhileRunning(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(context.Background(), runner, nil, pipeline.AllSteps, logger.Nop())

	assert.True(t, s.dailyTask())

	s.running.Lock()
	assert.False(t, s.dailyTask())
	s.running.Unlock()

	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestStop_WaitsForManualRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, nil, pipeline.AllSteps, logger.Nop())
	s.Start()

	assert.Contains(t, s.HandleCommand(context.Background(), "/run"), "Run started")
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was still in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
}

func TestRunNow_IgnoredAfterStop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(context.Background(), runner, nil, pipeline.AllSteps, logger.Nop())
	s.Start()
	s.Stop()

	s.RunNow()
	s.tasks.Wait()
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &countingRunner{}, nil, pipeline.AllSteps, logger.Nop())
	assert.NoError(t, s.Register("0 30 22 * * 1-5"))
	assert.Error(t, s.Register("not a cron"))
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	rec := &stateRecorder{}
	s := NewScheduler(ctx, &countingRunner{}, rec, pipeline.AllSteps, logger.Nop())

	assert.Equal(t, "No market state recorded yet.", s.HandleCommand(ctx, "/status"))
	assert.Equal(t, "No alerts recorded yet.", s.HandleCommand(ctx, "/alerts"))
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "/status")

	rec.state = &model.MarketState{
		Date:        time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Signal:      model.SignalHold,
		ExposurePct: 60,
	}
	reply := s.HandleCommand(ctx, "/STATUS")
	assert.Contains(t, reply, "2024-06-28")
	assert.Contains(t, reply, "Signal: HOLD")
}
