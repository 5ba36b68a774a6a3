package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// ErrNotEnoughData is returned when a series is shorter than an indicator's lookback.
var ErrNotEnoughData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("sma(%d) over %d values: %w", period, len(prices), ErrNotEnoughData)
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the simple moving average aligned with prices. Positions
// before the first full window hold NaN.
func SMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, fmt.Errorf("sma(%d) over %d values: %w", period, len(prices), ErrNotEnoughData)
	}
	return maskLookback(talib.Sma(prices, period), period-1), nil
}

// EMASeries returns the exponential moving average aligned with prices, seeded
// with the SMA of the first window. Positions before the seed hold NaN.
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, fmt.Errorf("ema(%d) over %d values: %w", period, len(prices), ErrNotEnoughData)
	}
	return maskLookback(talib.Ema(prices, period), period-1), nil
}

// CalculateEMA returns the latest EMA value.
func CalculateEMA(prices []float64, period int) (float64, error) {
	s, err := EMASeries(prices, period)
	if err != nil {
		return 0, err
	}
	return s[len(s)-1], nil
}

func maskLookback(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// Valid reports whether v is a usable indicator value.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
