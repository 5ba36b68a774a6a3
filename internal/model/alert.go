package model

import (
	"sort"
	"time"
)

// DetectorType identifies which alert detector produced a record.
type DetectorType string

const (
	DetectorMACross     DetectorType = "MA_CROSS"
	DetectorVolumeSpike DetectorType = "VOLUME_SPIKE"
	DetectorBreakout    DetectorType = "BREAKOUT"
	DetectorPattern     DetectorType = "PATTERN"
	DetectorComposite   DetectorType = "COMPOSITE"
)

// Direction is the bias of an alert.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
	DirectionNeutral Direction = "NEUTRAL"
)

// AlertRecord is one confidence-scored observation about a symbol on a date.
type AlertRecord struct {
	Symbol    string         `json:"symbol"`
	Date      time.Time      `json:"date"`
	Detector  DetectorType   `json:"detector_type"`
	Direction Direction      `json:"direction"`
	Strength  float64        `json:"strength"`
	Payload   map[string]any `json:"payload"`
}

// SortAlerts orders records by symbol, date and detector. Records that tie keep
// their emission order.
func SortAlerts(records []AlertRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Detector < b.Detector
	})
}

// LatestAlerts projects records onto one record per (symbol, detector): the most
// recent date wins, then the higher strength, then the earlier record in sort order.
func LatestAlerts(records []AlertRecord) []AlertRecord {
	sorted := make([]AlertRecord, len(records))
	copy(sorted, records)
	SortAlerts(sorted)

	type key struct {
		symbol   string
		detector DetectorType
	}
	best := make(map[key]int, len(sorted))
	order := make([]key, 0, len(sorted))
	for i, r := range sorted {
		k := key{r.Symbol, r.Detector}
		j, ok := best[k]
		if !ok {
			best[k] = i
			order = append(order, k)
			continue
		}
		cur := sorted[j]
		if r.Date.After(cur.Date) || (r.Date.Equal(cur.Date) && r.Strength > cur.Strength) {
			best[k] = i
		}
	}

	out := make([]AlertRecord, 0, len(order))
	for _, k := range order {
		out = append(out, sorted[best[k]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Detector < out[j].Detector
	})
	return out
}
