package breadth

import (
	"fmt"
	"time"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// RegimeClassifier derives the index regime from its fast and slow EMAs.
type RegimeClassifier struct {
	cfg config.RegimeConfig
}

// NewRegimeClassifier creates a classifier with the given periods and hysteresis band.
func NewRegimeClassifier(cfg config.RegimeConfig) *RegimeClassifier {
	return &RegimeClassifier{cfg: cfg}
}

// IndexState computes the index close and EMAs on the last bar of bars.
func (c *RegimeClassifier) IndexState(bars []model.OHLCV) (model.IndexState, error) {
	if len(bars) == 0 {
		return model.IndexState{}, fmt.Errorf("index state: %w", calculator.ErrNotEnoughData)
	}
	closes := model.Closes(bars)
	fast, err := calculator.CalculateEMA(closes, c.cfg.FastPeriod)
	if err != nil {
		return model.IndexState{}, fmt.Errorf("index fast ema: %w", err)
	}
	slow, err := calculator.CalculateEMA(closes, c.cfg.SlowPeriod)
	if err != nil {
		return model.IndexState{}, fmt.Errorf("index slow ema: %w", err)
	}
	last := bars[len(bars)-1]
	return model.IndexState{
		Date:    model.Day(last.Time),
		Close:   last.Close,
		EMAFast: fast,
		EMASlow: slow,
	}, nil
}

// Classify returns BULLISH above slow*(1+band), BEARISH below slow*(1-band),
// NEUTRAL inside the band. The band suppresses flapping around crossovers.
func (c *RegimeClassifier) Classify(s model.IndexState) model.Regime {
	switch {
	case s.EMAFast > s.EMASlow*(1+c.cfg.Band):
		return model.RegimeBullish
	case s.EMAFast < s.EMASlow*(1-c.cfg.Band):
		return model.RegimeBearish
	default:
		return model.RegimeNeutral
	}
}

// Detect is IndexState followed by Classify.
func (c *RegimeClassifier) Detect(date time.Time, bars []model.OHLCV) (model.IndexState, model.Regime, error) {
	state, err := c.IndexState(bars)
	if err != nil {
		return model.IndexState{}, "", err
	}
	if !state.Date.Equal(model.Day(date)) {
		return model.IndexState{}, "", fmt.Errorf("index has no bar on %s (last %s): %w",
			date.Format(model.DateLayout), state.Date.Format(model.DateLayout), calculator.ErrNotEnoughData)
	}
	return state, c.Classify(state), nil
}
