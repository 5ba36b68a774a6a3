package calculator

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// window returns the lookback values that precede the last element.
func window(values []float64, lookback int) ([]float64, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	if len(values) < lookback+1 {
		return nil, fmt.Errorf("trailing window %d over %d values: %w", lookback, len(values), ErrNotEnoughData)
	}
	n := len(values)
	return values[n-1-lookback : n-1], nil
}

// PriorHigh returns the highest value of the lookback bars before the latest bar.
func PriorHigh(highs []float64, lookback int) (float64, error) {
	w, err := window(highs, lookback)
	if err != nil {
		return 0, err
	}
	return floats.Max(w), nil
}

// PriorLow returns the lowest value of the lookback bars before the latest bar.
func PriorLow(lows []float64, lookback int) (float64, error) {
	w, err := window(lows, lookback)
	if err != nil {
		return 0, err
	}
	return floats.Min(w), nil
}

// AverageVolume returns the mean volume of the lookback bars before the latest bar.
func AverageVolume(volumes []float64, lookback int) (float64, error) {
	w, err := window(volumes, lookback)
	if err != nil {
		return 0, err
	}
	return stat.Mean(w, nil), nil
}

// Min returns the smallest value, or an error for an empty slice.
func Min(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("min of empty slice: %w", ErrNotEnoughData)
	}
	return floats.Min(values), nil
}
