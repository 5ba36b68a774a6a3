package strategy

import "BreadthSentinel/internal/model"

// Tiers maps the weighted breadth score to an exposure percentage, highest first.
var Tiers = []struct {
	MinScore float64
	Exposure int
}{
	{70, 100},
	{55, 80},
	{40, 60},
	{25, 40},
}

// DefaultExposure applies to scores below the lowest tier.
const DefaultExposure = 20

// mapTier maps a weighted score to an exposure percentage.
func mapTier(score float64) int {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t.Exposure
		}
	}
	return DefaultExposure
}

// ExposureAllocator recommends how much capital to deploy.
type ExposureAllocator struct{}

// Allocate returns the exposure percentage and the score it was derived from.
// A bearish regime always yields zero exposure.
func (ExposureAllocator) Allocate(regime model.Regime, b model.BreadthSnapshot) (int, float64) {
	score := WeightedScore(b)
	if regime == model.RegimeBearish {
		return 0, score
	}
	return mapTier(score), score
}

// SignalMatrix turns breadth, the bottom stage and the fast higher-low window
// into one action signal. Evaluation is top-down and the first match wins.
type SignalMatrix struct{}

// Evaluate returns exactly one signal for any input. The regime is accepted so
// callers pass the full market picture, but the tree is keyed on breadth alone.
func (SignalMatrix) Evaluate(_ model.Regime, b model.BreadthSnapshot, stage *model.BottomStage, fast model.HigherLowWindow) model.ActionSignal {
	ma20, ma50 := b.PctAboveMA20, b.PctAboveMA50

	if b.ConfirmedUptrend() {
		switch {
		case ma20 < 20:
			return model.SignalStrongBuy
		case ma20 < 40:
			return model.SignalBuy
		case ma20 > 80:
			return model.SignalWarning
		default:
			return model.SignalHold
		}
	}

	switch {
	case ma20 > 70:
		return model.SignalSell
	case ma50 < 30 && ma20 < 20 && !fast.IsHigherLow:
		return model.SignalDanger
	case stage != nil && *stage == model.StageEarlyReversal:
		return model.SignalEarlyBuy
	case stage != nil && *stage == model.StageAccumulating:
		return model.SignalAccumulating
	default:
		return model.SignalWait
	}
}

// Decision is the market-level outcome for one date.
type Decision struct {
	Signal        model.ActionSignal
	ExposurePct   int
	WeightedScore float64
}

// Evaluate computes the action signal and exposure together.
func Evaluate(regime model.Regime, b model.BreadthSnapshot, stage *model.BottomStage, fast model.HigherLowWindow) Decision {
	exposure, score := ExposureAllocator{}.Allocate(regime, b)
	return Decision{
		Signal:        SignalMatrix{}.Evaluate(regime, b, stage, fast),
		ExposurePct:   exposure,
		WeightedScore: score,
	}
}
