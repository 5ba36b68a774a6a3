package rotation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreadthSentinel/internal/calculator"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func scoresFor(dates int, last map[string]float64) []model.SectorScore {
	var out []model.SectorScore
	for i := 0; i < dates; i++ {
		d := start.AddDate(0, 0, i)
		for _, id := range []string{"energy", "finance", "tech"} {
			v := 100.0
			if i == dates-1 {
				v = last[id]
			}
			out = append(out, model.SectorScore{Date: d, SectorID: id, Score: v})
		}
	}
	return out
}

func TestQuadrant(t *testing.T) {
	tests := []struct {
		ratio, momentum float64
		want            model.Quadrant
	}{
		{1.2, 5, model.QuadrantLeading},
		{1.2, 0, model.QuadrantWeakening},
		{1.2, -1, model.QuadrantWeakening},
		{0.9, 1, model.QuadrantImproving},
		{1.0, 1, model.QuadrantImproving},
		{0.9, -1, model.QuadrantLagging},
		{1.0, 0.0, model.QuadrantLagging},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quadrant(tt.ratio, tt.momentum), "ratio=%v momentum=%v", tt.ratio, tt.momentum)
	}
}

func TestClassify_OutperformingSectorLeads(t *testing.T) {
	c := NewClassifier(config.SectorConfig{StrengthLookback: 20, MomentumLag: 5, SmoothPeriod: 3})
	scores := scoresFor(8, map[string]float64{"tech": 120, "energy": 90, "finance": 90})
	target := start.AddDate(0, 0, 7)

	ranks, skips, err := c.Classify(target, scores)
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, ranks, 3)

	assert.Equal(t, []string{"energy", "finance", "tech"},
		[]string{ranks[0].SectorID, ranks[1].SectorID, ranks[2].SectorID})

	tech := ranks[2]
	assert.Equal(t, target, tech.Date)
	assert.Equal(t, 120.0, tech.StrengthScore)
	assert.InDelta(t, 1.2, tech.RSRatio, 1e-9)
	assert.InDelta(t, 20.0/3, tech.RSMomentum, 1e-9)
	assert.Equal(t, model.QuadrantLeading, tech.Quadrant)

	assert.InDelta(t, 0.9, ranks[0].RSRatio, 1e-9)
	assert.Equal(t, model.QuadrantLagging, ranks[0].Quadrant)
}

func TestClassify_WithoutSmoothing(t *testing.T) {
	c := NewClassifier(config.SectorConfig{MomentumLag: 5, SmoothPeriod: 1})
	scores := scoresFor(6, map[string]float64{"tech": 120, "energy": 90, "finance": 90})

	ranks, _, err := c.Classify(start.AddDate(0, 0, 5), scores)
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.InDelta(t, 20.0, ranks[2].RSMomentum, 1e-9)
}

func TestClassify_SkipsShortHistoryAndIgnoresFuture(t *testing.T) {
	c := NewClassifier(config.SectorConfig{MomentumLag: 5, SmoothPeriod: 3})
	scores := scoresFor(8, map[string]float64{"tech": 120, "energy": 90, "finance": 90})
	for i := 5; i < 8; i++ {
		scores = append(scores, model.SectorScore{Date: start.AddDate(0, 0, i), SectorID: "utilities", Score: 100})
	}
	scores = append(scores, model.SectorScore{Date: start.AddDate(0, 0, 8), SectorID: "tech", Score: 1})
	target := start.AddDate(0, 0, 7)

	ranks, skips, err := c.Classify(target, scores)
	require.NoError(t, err)
	require.Len(t, skips, 1)
	assert.Equal(t, "utilities", skips[0].SectorID)
	assert.True(t, errors.Is(skips[0].Err, calculator.ErrNotEnoughData))

	require.Len(t, ranks, 3)
	assert.InDelta(t, 1.2, ranks[2].RSRatio, 1e-9, "mean includes the skipped sector's score")
}

func TestClassify_NoScoresOnDate(t *testing.T) {
	c := NewClassifier(config.SectorConfig{MomentumLag: 5, SmoothPeriod: 3})
	_, _, err := c.Classify(start.AddDate(0, 1, 0), scoresFor(8, nil))
	assert.True(t, errors.Is(err, ErrNoScores))
}
