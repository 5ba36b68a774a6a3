package collector

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"BreadthSentinel/internal/model"
)

// DeriveSectorScores computes, for every date, each sector's mean lookback
// return of its members as close(d)/close(d-lookback)*100. Members without a bar
// on the date or without lookback bars of history are left out; a sector with
// no eligible member has no score that date.
func DeriveSectorScores(series []model.PriceSeries, dates []time.Time, lookback int) []model.SectorScore {
	if lookback <= 0 {
		return nil
	}
	members := make(map[string][]*model.PriceSeries)
	var sectors []string
	for i := range series {
		s := &series[i]
		if s.Sector == "" {
			continue
		}
		if _, ok := members[s.Sector]; !ok {
			sectors = append(sectors, s.Sector)
		}
		members[s.Sector] = append(members[s.Sector], s)
	}
	sort.Strings(sectors)

	var out []model.SectorScore
	for _, d := range dates {
		for _, sector := range sectors {
			var values []float64
			for _, s := range members[sector] {
				i := s.IndexOf(d)
				if i < lookback {
					continue
				}
				base := s.Bars[i-lookback].Close
				if base <= 0 {
					continue
				}
				values = append(values, s.Bars[i].Close/base*100)
			}
			if len(values) == 0 {
				continue
			}
			out = append(out, model.SectorScore{Date: model.Day(d), SectorID: sector, Score: stat.Mean(values, nil)})
		}
	}
	return out
}
