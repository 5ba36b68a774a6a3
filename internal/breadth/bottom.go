package breadth

import (
	"fmt"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// HigherLow compares the minimum of the last window values with the minimum of
// the window values immediately before them. It needs 2*window values; older
// values are ignored.
func HigherLow(series []float64, window int) (model.HigherLowWindow, error) {
	if window <= 0 {
		return model.HigherLowWindow{}, fmt.Errorf("higher low: window must be positive, got %d", window)
	}
	n := len(series)
	if n < 2*window {
		return model.HigherLowWindow{}, fmt.Errorf("higher low: need %d values, have %d: %w",
			2*window, n, calculator.ErrNotEnoughData)
	}
	recent, err := calculator.Min(series[n-window:])
	if err != nil {
		return model.HigherLowWindow{}, err
	}
	previous, err := calculator.Min(series[n-2*window : n-window])
	if err != nil {
		return model.HigherLowWindow{}, err
	}
	current := series[n-1]
	return model.HigherLowWindow{
		RecentLow:       recent,
		PreviousLow:     previous,
		CurrentValue:    current,
		IsHigherLow:     recent > previous,
		IsRisingFromLow: current > recent,
	}, nil
}

// BottomDetector tracks the bottom-formation stage from breadth history.
type BottomDetector struct {
	cfg config.BottomConfig
}

// NewBottomDetector creates a detector with the given window sizes.
func NewBottomDetector(cfg config.BottomConfig) *BottomDetector {
	return &BottomDetector{cfg: cfg}
}

// HistoryDates is the number of trailing breadth dates Windows expects.
func (d *BottomDetector) HistoryDates() int { return d.cfg.HistoryDates }

// Windows extracts the fast window from the MA20 breadth history and the slow
// window from the MA50 history. Both histories end on the target date and are
// read independently from the same trailing buffer.
func (d *BottomDetector) Windows(history []model.BreadthSnapshot) (fast, slow model.HigherLowWindow, err error) {
	if len(history) < d.cfg.HistoryDates {
		return fast, slow, fmt.Errorf("bottom windows: need %d breadth dates, have %d: %w",
			d.cfg.HistoryDates, len(history), calculator.ErrNotEnoughData)
	}
	tail := history[len(history)-d.cfg.HistoryDates:]
	ma20 := make([]float64, len(tail))
	ma50 := make([]float64, len(tail))
	for i, s := range tail {
		ma20[i] = s.PctAboveMA20
		ma50[i] = s.PctAboveMA50
	}
	if fast, err = HigherLow(ma20, d.cfg.FastWindow); err != nil {
		return fast, slow, fmt.Errorf("fast window: %w", err)
	}
	if slow, err = HigherLow(ma50, d.cfg.SlowWindow); err != nil {
		return fast, slow, fmt.Errorf("slow window: %w", err)
	}
	return fast, slow, nil
}

// Stage applies the transitions in order: capitulation, accumulation, early
// reversal. It returns nil in a confirmed uptrend or when nothing matches.
func (d *BottomDetector) Stage(b model.BreadthSnapshot, fast, slow model.HigherLowWindow) *model.BottomStage {
	if b.ConfirmedUptrend() {
		return nil
	}
	ma20, ma50, ma100 := b.PctAboveMA20, b.PctAboveMA50, b.PctAboveMA100

	var stage model.BottomStage
	switch {
	case ma20 < 25 && ma50 < 25 && ma100 < 25 && !fast.IsHigherLow:
		stage = model.StageCapitulation
	case ma20 < 30 && ma50 < 30 && ma100 < 30 && fast.IsHigherLow && fast.IsRisingFromLow:
		stage = model.StageAccumulating
	case ma20 >= 25 && fast.IsHigherLow && slow.IsHigherLow && slow.IsRisingFromLow:
		stage = model.StageEarlyReversal
	default:
		return nil
	}
	return &stage
}
