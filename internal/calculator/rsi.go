package calculator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// RSISeries computes the Wilder-smoothed RSI aligned with closes.
// Requires at least period+1 values; the first period positions hold NaN.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return nil, fmt.Errorf("rsi(%d) over %d values: %w", period, len(closes), ErrNotEnoughData)
	}
	return maskLookback(talib.Rsi(closes, period), period), nil
}

// CalculateRSI returns the latest RSI value.
func CalculateRSI(closes []float64, period int) (float64, error) {
	s, err := RSISeries(closes, period)
	if err != nil {
		return 0, err
	}
	return s[len(s)-1], nil
}
