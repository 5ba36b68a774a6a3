// Package breadth computes cross-sectional breadth, the index regime and the
// bottom-formation stage for one trading date.
package breadth

import (
	"errors"
	"fmt"
	"time"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/model"
)

// ErrInvalidValue marks an observation whose price or average is outside its domain.
var ErrInvalidValue = errors.New("invalid value")

// Periods are the moving-average lengths breadth is measured against.
var Periods = [3]int{20, 50, 100}

// Observation is one symbol's close and moving averages on a date. MA holds
// NaN for periods the symbol lacks history for.
type Observation struct {
	Symbol    string
	Close     float64
	PrevClose float64 // NaN when there is no prior bar
	Bars      int
	MA        [3]float64 // aligned with Periods
}

// Exclusion records why a symbol was left out of the aggregates.
type Exclusion struct {
	Symbol string
	Err    error
}

// Aggregator turns per-symbol observations into a BreadthSnapshot.
type Aggregator struct{}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Aggregate counts, for each period, the symbols closing above their moving
// average. Symbols with fewer bars than a period are left out of that period's
// numerator and denominator; symbols with invalid values are left out entirely.
func (a *Aggregator) Aggregate(date time.Time, obs []Observation) (model.BreadthSnapshot, []Exclusion) {
	snap := model.BreadthSnapshot{Date: model.Day(date)}
	var excluded []Exclusion

	var above, eligible [3]int
	for _, o := range obs {
		if err := checkObservation(o); err != nil {
			excluded = append(excluded, Exclusion{Symbol: o.Symbol, Err: err})
			continue
		}
		for i, p := range Periods {
			if o.Bars < p {
				continue
			}
			eligible[i]++
			if o.Close > o.MA[i] {
				above[i]++
			}
		}
		if calculator.Valid(o.PrevClose) {
			if o.Close > o.PrevClose {
				snap.AdvancingCount++
			} else {
				snap.DecliningCount++
			}
		}
	}

	snap.UniverseSize = snap.AdvancingCount + snap.DecliningCount
	snap.Eligible20, snap.Eligible50, snap.Eligible100 = eligible[0], eligible[1], eligible[2]
	snap.PctAboveMA20 = percent(above[0], eligible[0])
	snap.PctAboveMA50 = percent(above[1], eligible[1])
	snap.PctAboveMA100 = percent(above[2], eligible[2])
	return snap, excluded
}

func checkObservation(o Observation) error {
	if !calculator.Valid(o.Close) || o.Close <= 0 {
		return fmt.Errorf("%s close %v: %w", o.Symbol, o.Close, ErrInvalidValue)
	}
	if calculator.Valid(o.PrevClose) && o.PrevClose <= 0 {
		return fmt.Errorf("%s previous close %v: %w", o.Symbol, o.PrevClose, ErrInvalidValue)
	}
	for i, p := range Periods {
		if o.Bars < p {
			continue
		}
		if !calculator.Valid(o.MA[i]) || o.MA[i] <= 0 {
			return fmt.Errorf("%s ma%d %v: %w", o.Symbol, p, o.MA[i], ErrInvalidValue)
		}
	}
	return nil
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}
