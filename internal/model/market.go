package model

import (
	"sort"
	"time"
)

// DateLayout is the canonical day format used for keys, flags and storage.
const DateLayout = "2006-01-02"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds the daily bars of one symbol, oldest first.
type PriceSeries struct {
	Symbol string
	Sector string
	Bars   []OHLCV
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Until returns the bars dated on or before date. The result shares the backing array.
func (s *PriceSeries) Until(date time.Time) []OHLCV {
	end := Day(date)
	n := sort.Search(len(s.Bars), func(i int) bool {
		return Day(s.Bars[i].Time).After(end)
	})
	return s.Bars[:n]
}

// IndexOf returns the position of the bar dated on date, or -1.
func (s *PriceSeries) IndexOf(date time.Time) int {
	day := Day(date)
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !Day(s.Bars[i].Time).Before(day)
	})
	if i < len(s.Bars) && Day(s.Bars[i].Time).Equal(day) {
		return i
	}
	return -1
}

// LastDate returns the date of the most recent bar, or the zero time.
func (s *PriceSeries) LastDate() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return Day(s.Bars[len(s.Bars)-1].Time)
}

// Closes extracts closing prices.
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts high prices.
func Highs(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices.
func Lows(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts traded volumes.
func Volumes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
