package alerts

import (
	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// Breakout flags closes beyond the prior trading range on above-average volume.
type Breakout struct {
	cfg config.AlertConfig
}

// NewBreakout creates a breakout/breakdown detector.
func NewBreakout(cfg config.AlertConfig) *Breakout {
	return &Breakout{cfg: cfg}
}

func (d *Breakout) Type() model.DetectorType { return model.DetectorBreakout }

func (d *Breakout) Detect(in *Input) ([]model.AlertRecord, error) {
	need := max(d.cfg.BreakoutLookback, d.cfg.VolumeLookback) + 1
	if in.Len() < need {
		return nil, in.missing(d.Type(), need)
	}
	high, err := calculator.PriorHigh(model.Highs(in.Bars), d.cfg.BreakoutLookback)
	if err != nil {
		return nil, err
	}
	low, err := calculator.PriorLow(model.Lows(in.Bars), d.cfg.BreakoutLookback)
	if err != nil {
		return nil, err
	}
	vols := model.Volumes(in.Bars)
	avg, err := calculator.AverageVolume(vols, d.cfg.VolumeLookback)
	if err != nil {
		return nil, err
	}
	vol := last(vols)
	if vol < d.cfg.BreakoutVolumeMultiplier*avg {
		return nil, nil
	}

	price := in.Last().Close
	var (
		dir   model.Direction
		kind  string
		level float64
	)
	switch {
	case price > high:
		dir, kind, level = model.DirectionBullish, "breakout", high
	case price < low:
		dir, kind, level = model.DirectionBearish, "breakdown", low
	default:
		return nil, nil
	}
	return []model.AlertRecord{in.record(d.Type(), dir, d.cfg.BreakoutStrength, map[string]any{
		"kind":       kind,
		"level":      level,
		"close":      price,
		"avg_volume": avg,
		"volume":     vol,
	})}, nil
}
