package calculator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	v, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, v, 1e-12)

	_, err = CalculateSMA([]float64{1, 2}, 3)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = CalculateSMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestSMASeries_AlignedAndMasked(t *testing.T) {
	prices := ramp(30, 10, 1)
	s, err := SMASeries(prices, 20)
	require.NoError(t, err)
	require.Len(t, s, len(prices))

	assert.True(t, math.IsNaN(s[18]))
	assert.False(t, math.IsNaN(s[19]))

	want, err := CalculateSMA(prices, 20)
	require.NoError(t, err)
	assert.InDelta(t, want, s[len(s)-1], 1e-9)
	assert.InDelta(t, 19.5, s[19], 1e-9)
}

func TestEMASeries_ConstantInput(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 42
	}
	v, err := CalculateEMA(prices, 21)
	require.NoError(t, err)
	assert.InDelta(t, 42, v, 1e-9)

	_, err = EMASeries(prices[:5], 9)
	assert.True(t, errors.Is(err, ErrNotEnoughData))
}

func TestRSI_OnlyGainsIsHundred(t *testing.T) {
	v, err := CalculateRSI(ramp(30, 100, 1), 14)
	require.NoError(t, err)
	assert.InDelta(t, 100, v, 1e-9)

	_, err = CalculateRSI(ramp(14, 100, 1), 14)
	assert.True(t, errors.Is(err, ErrNotEnoughData))
}

func TestDMISeries_Uptrend(t *testing.T) {
	n := 60
	lows := ramp(n, 100, 1)
	highs := ramp(n, 101, 1)
	closes := ramp(n, 100.5, 1)

	dmi, err := DMISeries(highs, lows, closes, 14)
	require.NoError(t, err)
	last := n - 1
	assert.Greater(t, dmi.PlusDI[last], dmi.MinusDI[last])
	assert.Greater(t, dmi.ADX[last], 20.0)
	assert.True(t, math.IsNaN(dmi.ADX[0]))

	_, err = DMISeries(highs[:20], lows[:20], closes[:20], 14)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = DMISeries(highs, lows[:10], closes, 14)
	assert.Error(t, err)
}

func TestPriorRangeAndVolume(t *testing.T) {
	highs := []float64{5, 9, 7, 8, 20}
	lows := []float64{3, 1, 4, 2, 0.5}
	vols := []float64{100, 200, 300, 400, 10000}

	h, err := PriorHigh(highs, 3)
	require.NoError(t, err)
	assert.Equal(t, 9.0, h, "latest bar is excluded")

	l, err := PriorLow(lows, 4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, l)

	avg, err := AverageVolume(vols, 4)
	require.NoError(t, err)
	assert.InDelta(t, 250, avg, 1e-9)

	_, err = PriorHigh(highs, 5)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = Min(nil)
	assert.Error(t, err)
}
