package alerts

import (
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// PatternDetector reports the most reliable candlestick pattern on the target date.
type PatternDetector struct {
	need int
}

// NewPattern creates a pattern detector over the configured most reliable patterns.
func NewPattern(cfg config.AlertConfig) *PatternDetector {
	need := 1
	for _, p := range MostReliable(cfg.PatternTopN) {
		need = max(need, p.Bars)
	}
	return &PatternDetector{need: need}
}

func (d *PatternDetector) Type() model.DetectorType { return model.DetectorPattern }

func (d *PatternDetector) Detect(in *Input) ([]model.AlertRecord, error) {
	if in.Len() < d.need {
		return nil, in.missing(d.Type(), d.need)
	}
	matches := in.Patterns()
	if len(matches) == 0 {
		return nil, nil
	}
	best := matches[0]
	names := make([]string, len(matches))
	for i, p := range matches {
		names[i] = p.Name
	}
	return []model.AlertRecord{in.record(d.Type(), best.Direction, best.Reliability, map[string]any{
		"pattern": best.Name,
		"matches": names,
	})}, nil
}
