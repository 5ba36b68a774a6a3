package alerts

import (
	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// SignalWatch labels volume spikes that merit attention but not action.
const SignalWatch = "WATCH"

// VolumeSpike flags unusual volume and grades it by how many independent
// signals confirm the bar's direction.
type VolumeSpike struct {
	cfg config.AlertConfig
}

// NewVolumeSpike creates a volume spike detector.
func NewVolumeSpike(cfg config.AlertConfig) *VolumeSpike {
	return &VolumeSpike{cfg: cfg}
}

func (d *VolumeSpike) Type() model.DetectorType { return model.DetectorVolumeSpike }

// Detect requires volume above the multiplier of its trailing average. Breakout,
// RSI range, trend strength and a same-direction pattern each add a confirmation;
// confirmations that lack history count as absent.
func (d *VolumeSpike) Detect(in *Input) ([]model.AlertRecord, error) {
	need := d.cfg.VolumeLookback + 1
	if in.Len() < need {
		return nil, in.missing(d.Type(), need)
	}
	vols := model.Volumes(in.Bars)
	avg, err := calculator.AverageVolume(vols, d.cfg.VolumeLookback)
	if err != nil {
		return nil, err
	}
	vol := last(vols)
	if vol <= d.cfg.VolumeSpikeMultiplier*avg {
		return nil, nil
	}

	dir := barDirection(in)
	var confirmations []string
	if d.breakout(in, dir) {
		confirmations = append(confirmations, "breakout")
	}
	if d.rsiInRange(in) {
		confirmations = append(confirmations, "rsi")
	}
	if d.trending(in, dir) {
		confirmations = append(confirmations, "adx")
	}
	if d.patternAgrees(in, dir) {
		confirmations = append(confirmations, "pattern")
	}

	confidence := float64(1+len(confirmations)) / 5
	if confidence < d.cfg.VolumeMinConfidence {
		return nil, nil
	}
	ratio := 0.0
	if avg > 0 {
		ratio = vol / avg
	}
	if confirmations == nil {
		confirmations = []string{}
	}
	return []model.AlertRecord{in.record(d.Type(), dir, confidence, map[string]any{
		"signal":        SignalWatch,
		"volume":        vol,
		"avg_volume":    avg,
		"volume_ratio":  ratio,
		"confidence":    confidence,
		"confirmations": confirmations,
	})}, nil
}

func (d *VolumeSpike) breakout(in *Input, dir model.Direction) bool {
	closes := in.Closes()
	switch dir {
	case model.DirectionBullish:
		high, err := calculator.PriorHigh(model.Highs(in.Bars), d.cfg.BreakoutLookback)
		return err == nil && last(closes) > high
	case model.DirectionBearish:
		low, err := calculator.PriorLow(model.Lows(in.Bars), d.cfg.BreakoutLookback)
		return err == nil && last(closes) < low
	}
	return false
}

func (d *VolumeSpike) rsiInRange(in *Input) bool {
	rsi, err := in.RSI()
	if err != nil {
		return false
	}
	v := last(rsi)
	return calculator.Valid(v) && v > d.cfg.RSILow && v < d.cfg.RSIHigh
}

func (d *VolumeSpike) trending(in *Input, dir model.Direction) bool {
	dmi, err := in.DMI()
	if err != nil {
		return false
	}
	adx, plus, minus := last(dmi.ADX), last(dmi.PlusDI), last(dmi.MinusDI)
	if !calculator.Valid(adx) || adx < d.cfg.ADXTrend {
		return false
	}
	switch dir {
	case model.DirectionBullish:
		return plus > minus
	case model.DirectionBearish:
		return minus > plus
	}
	return false
}

func (d *VolumeSpike) patternAgrees(in *Input, dir model.Direction) bool {
	if dir == model.DirectionNeutral {
		return false
	}
	for _, p := range in.Patterns() {
		if p.Direction == dir {
			return true
		}
	}
	return false
}
