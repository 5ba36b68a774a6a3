package alerts

import (
	"errors"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// MACross flags closes that cross a simple moving average on the target date.
type MACross struct {
	periods  []int
	strength float64
}

// NewMACross creates an MA crossover detector.
func NewMACross(cfg config.AlertConfig) *MACross {
	return &MACross{periods: cfg.MAPeriods, strength: cfg.MACrossStrength}
}

func (d *MACross) Type() model.DetectorType { return model.DetectorMACross }

// Detect checks every period independently. A period needs period+1 bars so the
// previous bar has an average too; shorter periods still report when a longer one
// is skipped.
func (d *MACross) Detect(in *Input) ([]model.AlertRecord, error) {
	var out []model.AlertRecord
	var errs []error
	closes := in.Closes()
	for _, p := range d.periods {
		if in.Len() < p+1 {
			errs = append(errs, in.missing(d.Type(), p+1))
			continue
		}
		sma, err := in.SMA(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n := len(closes)
		cur, prev := sma[n-1], sma[n-2]
		if !calculator.Valid(cur) || !calculator.Valid(prev) {
			continue
		}

		var dir model.Direction
		switch {
		case closes[n-2] <= prev && closes[n-1] > cur:
			dir = model.DirectionBullish
		case closes[n-2] >= prev && closes[n-1] < cur:
			dir = model.DirectionBearish
		default:
			continue
		}
		out = append(out, in.record(d.Type(), dir, d.strength, map[string]any{
			"period": p,
			"ma":     cur,
			"close":  closes[n-1],
		}))
	}
	return out, errors.Join(errs...)
}
