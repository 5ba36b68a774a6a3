package strategy

import "BreadthSentinel/internal/model"

// Factor is one weighted breadth component of the exposure score.
type Factor struct {
	Name   string
	Weight float64
	Value  func(b model.BreadthSnapshot) float64
}

// Factors weight medium-term breadth heaviest, then short-term, then long-term.
// The weights sum to 1, so the score stays in [0, 100].
var Factors = []Factor{
	{"pct_above_ma50", 0.5, func(b model.BreadthSnapshot) float64 { return b.PctAboveMA50 }},
	{"pct_above_ma20", 0.3, func(b model.BreadthSnapshot) float64 { return b.PctAboveMA20 }},
	{"pct_above_ma100", 0.2, func(b model.BreadthSnapshot) float64 { return b.PctAboveMA100 }},
}

// WeightedScore combines the breadth percentages into one score.
func WeightedScore(b model.BreadthSnapshot) float64 {
	var total float64
	for _, f := range Factors {
		total += f.Weight * f.Value(b)
	}
	return total
}
