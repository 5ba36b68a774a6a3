// Package alerts runs per-symbol technical detectors over daily bars.
package alerts

import (
	"errors"
	"fmt"
	"time"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// ErrMissingHistory is wrapped by every MissingHistoryError.
var ErrMissingHistory = errors.New("missing history")

// MissingHistoryError reports a detector that had too few bars to evaluate.
type MissingHistoryError struct {
	Symbol   string
	Detector string
	Need     int
	Have     int
}

func (e *MissingHistoryError) Error() string {
	return fmt.Sprintf("%s: %s needs %d bars, have %d", e.Symbol, e.Detector, e.Need, e.Have)
}

func (e *MissingHistoryError) Unwrap() error { return ErrMissingHistory }

// Detector inspects one symbol on one date. A detector may return records and
// an error together when part of its work lacked history.
type Detector interface {
	Type() model.DetectorType
	Detect(in *Input) ([]model.AlertRecord, error)
}

// Defaults returns the five detectors in canonical order.
func Defaults(cfg config.AlertConfig) []Detector {
	return []Detector{
		NewMACross(cfg),
		NewVolumeSpike(cfg),
		NewBreakout(cfg),
		NewPattern(cfg),
		NewComposite(cfg),
	}
}

// Input holds one symbol's bars up to the target date and memoises the
// indicator series the detectors share. An Input is not safe for concurrent use.
type Input struct {
	Symbol string
	Date   time.Time
	Bars   []model.OHLCV

	cfg      config.AlertConfig
	closes   []float64
	sma      map[int][]float64
	rsi      []float64
	rsiErr   error
	dmi      *calculator.DirectionalIndex
	dmiErr   error
	patterns []Pattern
	matched  bool
}

// NewInput creates an Input. bars must be sorted oldest first and end on date.
func NewInput(symbol string, date time.Time, bars []model.OHLCV, cfg config.AlertConfig) *Input {
	return &Input{
		Symbol: symbol,
		Date:   model.Day(date),
		Bars:   bars,
		cfg:    cfg,
		sma:    make(map[int][]float64),
	}
}

// Len is the number of bars available.
func (in *Input) Len() int { return len(in.Bars) }

// Last returns the bar on the target date.
func (in *Input) Last() model.OHLCV { return in.Bars[len(in.Bars)-1] }

// Prev returns the bar before the target date.
func (in *Input) Prev() model.OHLCV { return in.Bars[len(in.Bars)-2] }

// Closes returns the closing prices.
func (in *Input) Closes() []float64 {
	if in.closes == nil {
		in.closes = model.Closes(in.Bars)
	}
	return in.closes
}

// SMA returns the simple moving average series for period.
func (in *Input) SMA(period int) ([]float64, error) {
	if s, ok := in.sma[period]; ok {
		return s, nil
	}
	s, err := calculator.SMASeries(in.Closes(), period)
	if err != nil {
		return nil, err
	}
	in.sma[period] = s
	return s, nil
}

// RSI returns the RSI series for the configured period.
func (in *Input) RSI() ([]float64, error) {
	if in.rsi == nil && in.rsiErr == nil {
		in.rsi, in.rsiErr = calculator.RSISeries(in.Closes(), in.cfg.RSIPeriod)
	}
	return in.rsi, in.rsiErr
}

// DMI returns ADX and the directional indicators for the configured period.
func (in *Input) DMI() (*calculator.DirectionalIndex, error) {
	if in.dmi == nil && in.dmiErr == nil {
		in.dmi, in.dmiErr = calculator.DMISeries(model.Highs(in.Bars), model.Lows(in.Bars), in.Closes(), in.cfg.ADXPeriod)
	}
	return in.dmi, in.dmiErr
}

// Patterns returns the most reliable candlestick patterns completed by the
// last bar, best first.
func (in *Input) Patterns() []Pattern {
	if !in.matched {
		in.patterns = MatchPatterns(in.Bars, MostReliable(in.cfg.PatternTopN))
		in.matched = true
	}
	return in.patterns
}

func (in *Input) missing(d model.DetectorType, need int) error {
	return &MissingHistoryError{Symbol: in.Symbol, Detector: string(d), Need: need, Have: in.Len()}
}

func (in *Input) record(d model.DetectorType, dir model.Direction, strength float64, payload map[string]any) model.AlertRecord {
	return model.AlertRecord{
		Symbol:    in.Symbol,
		Date:      in.Date,
		Detector:  d,
		Direction: dir,
		Strength:  clamp01(strength),
		Payload:   payload,
	}
}

// barDirection is the bias of the last bar: its body colour, or the close-to-close
// change for a bar that opened and closed at the same price.
func barDirection(in *Input) model.Direction {
	last := in.Last()
	switch {
	case last.Close > last.Open:
		return model.DirectionBullish
	case last.Close < last.Open:
		return model.DirectionBearish
	}
	if in.Len() < 2 {
		return model.DirectionNeutral
	}
	prev := in.Prev()
	switch {
	case last.Close > prev.Close:
		return model.DirectionBullish
	case last.Close < prev.Close:
		return model.DirectionBearish
	default:
		return model.DirectionNeutral
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func last(series []float64) float64 { return series[len(series)-1] }
