package calculator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// DirectionalIndex bundles the trend-strength oscillator with its directional lines.
type DirectionalIndex struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// DMISeries computes ADX, +DI and -DI aligned with the input bars.
// ADX needs 2*period values; leading positions hold NaN.
func DMISeries(highs, lows, closes []float64, period int) (*DirectionalIndex, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return nil, errors.New("high/low/close length mismatch")
	}
	if len(closes) < 2*period {
		return nil, fmt.Errorf("adx(%d) over %d values: %w", period, len(closes), ErrNotEnoughData)
	}
	return &DirectionalIndex{
		ADX:     maskLookback(talib.Adx(highs, lows, closes, period), 2*period-1),
		PlusDI:  maskLookback(talib.PlusDI(highs, lows, closes, period), period),
		MinusDI: maskLookback(talib.MinusDI(highs, lows, closes, period), period),
	}, nil
}
