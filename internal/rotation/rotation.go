// Package rotation places sectors on a Relative Rotation Graph.
package rotation

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// ErrNoScores is returned when no sector has a score on the target date.
var ErrNoScores = errors.New("no sector scores on date")

// Skip records a sector left out of the ranking.
type Skip struct {
	SectorID string
	Err      error
}

// Classifier computes relative strength ratio and momentum per sector.
type Classifier struct {
	cfg config.SectorConfig
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg config.SectorConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Quadrant buckets a sector by ratio and momentum. A ratio of exactly 1 counts
// as not outperforming and zero momentum as not improving, so (1, 0) is LAGGING.
func Quadrant(ratio, momentum float64) model.Quadrant {
	switch {
	case ratio > 1 && momentum > 0:
		return model.QuadrantLeading
	case ratio > 1:
		return model.QuadrantWeakening
	case momentum > 0:
		return model.QuadrantImproving
	default:
		return model.QuadrantLagging
	}
}

// Lookback is the number of score dates, target included, a sector needs.
func (c *Classifier) Lookback() int {
	return c.cfg.MomentumLag + c.cfg.SmoothPeriod
}

// Classify ranks every sector scored on date. Scores after date are ignored.
// Sectors without enough consecutive history are skipped and reported.
func (c *Classifier) Classify(date time.Time, scores []model.SectorScore) ([]model.SectorRank, []Skip, error) {
	target := model.Day(date)

	byDate := make(map[time.Time]map[string]float64)
	for _, s := range scores {
		d := model.Day(s.Date)
		if d.After(target) {
			continue
		}
		if byDate[d] == nil {
			byDate[d] = make(map[string]float64)
		}
		byDate[d][s.SectorID] = s.Score
	}
	today, ok := byDate[target]
	if !ok || len(today) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", target.Format(model.DateLayout), ErrNoScores)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	need := c.Lookback()
	if len(dates) > need {
		dates = dates[len(dates)-need:]
	}
	ratios := make([]map[string]float64, len(dates))
	for i, d := range dates {
		ratios[i] = relativeStrength(byDate[d])
	}

	ids := make([]string, 0, len(today))
	for id := range today {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var ranks []model.SectorRank
	var skips []Skip
	for _, id := range ids {
		series, ok := sectorSeries(ratios, id)
		if !ok || len(series) < need {
			skips = append(skips, Skip{SectorID: id, Err: fmt.Errorf("sector %s needs %d score dates: %w",
				id, need, calculator.ErrNotEnoughData)})
			continue
		}
		momentum := c.momentum(series)
		ratio := series[len(series)-1]
		ranks = append(ranks, model.SectorRank{
			Date:          target,
			SectorID:      id,
			StrengthScore: today[id],
			RSRatio:       ratio,
			RSMomentum:    momentum,
			Quadrant:      Quadrant(ratio, momentum),
		})
	}
	return ranks, skips, nil
}

// momentum averages the last SmoothPeriod lagged ratio differences, scaled by 100.
func (c *Classifier) momentum(series []float64) float64 {
	lag := c.cfg.MomentumLag
	diffs := make([]float64, 0, c.cfg.SmoothPeriod)
	for i := len(series) - c.cfg.SmoothPeriod; i < len(series); i++ {
		diffs = append(diffs, (series[i]-series[i-lag])*100)
	}
	return stat.Mean(diffs, nil)
}

// relativeStrength divides each score by the cross-sector mean of the date.
func relativeStrength(scores map[string]float64) map[string]float64 {
	values := make([]float64, 0, len(scores))
	for _, v := range scores {
		values = append(values, v)
	}
	// Fixed order keeps the floating-point sum reproducible across runs.
	sort.Float64s(values)
	mean := stat.Mean(values, nil)

	out := make(map[string]float64, len(scores))
	for id, v := range scores {
		if mean == 0 {
			out[id] = 1
			continue
		}
		out[id] = v / mean
	}
	return out
}

// sectorSeries returns the trailing run of consecutive ratios for id, ending on the last date.
func sectorSeries(ratios []map[string]float64, id string) ([]float64, bool) {
	var out []float64
	for i := len(ratios) - 1; i >= 0; i-- {
		r, ok := ratios[i][id]
		if !ok {
			break
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, false
	}
	slices.Reverse(out)
	return out, true
}
