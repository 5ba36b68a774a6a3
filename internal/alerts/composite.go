package alerts

import (
	"math"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// Composite labels used in the payload.
const (
	CompositeStrongBuy  = "STRONG_BUY"
	CompositeBuy        = "BUY"
	CompositeNeutral    = "NEUTRAL"
	CompositeSell       = "SELL"
	CompositeStrongSell = "STRONG_SELL"
)

const (
	compositeFast = 20
	compositeSlow = 50

	trendWeight    = 0.6
	momentumWeight = 0.4
	weakTrendScale = 0.5
)

// Composite blends trend, momentum and trend strength into one score.
type Composite struct {
	cfg config.AlertConfig
}

// NewComposite creates a composite score detector.
func NewComposite(cfg config.AlertConfig) *Composite {
	return &Composite{cfg: cfg}
}

func (d *Composite) Type() model.DetectorType { return model.DetectorComposite }

func (d *Composite) need() int {
	return max(compositeSlow, d.cfg.RSIPeriod+1, 2*d.cfg.ADXPeriod)
}

// Detect always emits one record when history allows. Trend scores the close
// against SMA20 and SMA20 against SMA50; momentum is RSI distance from 50; a
// weak ADX halves the result.
func (d *Composite) Detect(in *Input) ([]model.AlertRecord, error) {
	need := d.need()
	if in.Len() < need {
		return nil, in.missing(d.Type(), need)
	}
	fast, err := in.SMA(compositeFast)
	if err != nil {
		return nil, err
	}
	slow, err := in.SMA(compositeSlow)
	if err != nil {
		return nil, err
	}
	rsiSeries, err := in.RSI()
	if err != nil {
		return nil, err
	}
	dmi, err := in.DMI()
	if err != nil {
		return nil, err
	}
	price, smaFast, smaSlow := last(in.Closes()), last(fast), last(slow)
	rsi, adx := last(rsiSeries), last(dmi.ADX)
	if !calculator.Valid(smaFast) || !calculator.Valid(smaSlow) || !calculator.Valid(rsi) || !calculator.Valid(adx) {
		return nil, in.missing(d.Type(), need)
	}

	trend := sign(price-smaFast)*0.5 + sign(smaFast-smaSlow)*0.5
	momentum := math.Max(-1, math.Min(1, (rsi-50)/50))
	raw := trendWeight*trend + momentumWeight*momentum
	if adx < d.cfg.ADXTrend {
		raw *= weakTrendScale
	}
	raw = math.Max(-1, math.Min(1, raw))

	signal, dir := classifyComposite(raw)
	return []model.AlertRecord{in.record(d.Type(), dir, math.Abs(raw), map[string]any{
		"signal":     signal,
		"raw":        raw,
		"confidence": int(math.Round(math.Abs(raw) * 100)),
		"trend":      trend,
		"momentum":   momentum,
		"rsi":        rsi,
		"adx":        adx,
	})}, nil
}

func classifyComposite(raw float64) (string, model.Direction) {
	switch {
	case raw >= 0.6:
		return CompositeStrongBuy, model.DirectionBullish
	case raw >= 0.2:
		return CompositeBuy, model.DirectionBullish
	case raw <= -0.6:
		return CompositeStrongSell, model.DirectionBearish
	case raw <= -0.2:
		return CompositeSell, model.DirectionBearish
	default:
		return CompositeNeutral, model.DirectionNeutral
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
