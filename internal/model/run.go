package model

import "time"

// Skip reasons reported per symbol, sector or detector.
const (
	ReasonMissingHistory  = "missing_history"
	ReasonMissingUpstream = "missing_upstream"
	ReasonInvalidValue    = "invalid_value"
	ReasonFetchFailed     = "fetch_failed"
	ReasonNoBar           = "no_bar_on_date"
	ReasonDetectorError   = "detector_error"
)

// RunSkip records one unit of work left out of a run. Symbol holds the sector
// ID for skips of the sectors step and is empty for step-level skips.
type RunSkip struct {
	Symbol   string `json:"symbol,omitempty"`
	Step     string `json:"step"`
	Detector string `json:"detector,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// RunReport summarises one classification run for one date.
type RunReport struct {
	RunID            string        `json:"run_id"`
	Date             time.Time     `json:"date"`
	Steps            []string      `json:"steps"`
	SymbolsProcessed int           `json:"symbols_processed"`
	SymbolsSkipped   int           `json:"symbols_skipped"`
	AlertsEmitted    int           `json:"alerts_emitted"`
	Skips            []RunSkip     `json:"skips"`
	Fatal            bool          `json:"fatal"`
	FatalError       string        `json:"fatal_error,omitempty"`
	Duration         time.Duration `json:"duration"`
}
