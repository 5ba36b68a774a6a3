package recorder

import (
	"context"

	"BreadthSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SaveMarketState(context.Context, *model.MarketState) error { return nil }
func (n *NoopRecorder) SaveSectorRanks(context.Context, []model.SectorRank) error { return nil }
func (n *NoopRecorder) RecordAlerts(context.Context, []model.AlertRecord) error   { return nil }
func (n *NoopRecorder) SaveRun(context.Context, model.RunReport) error            { return nil }
func (n *NoopRecorder) LatestAlerts(context.Context) ([]model.AlertRecord, error) { return nil, nil }
func (n *NoopRecorder) LatestMarketState(context.Context) (*model.MarketState, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
