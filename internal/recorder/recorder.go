// Package recorder persists classification outputs.
package recorder

import (
	"context"

	"BreadthSentinel/internal/model"
)

// Recorder persists classification outputs for analysis and API consumers.
// Recomputing a date overwrites its state and ranks; alert history is
// append-only and ignores records already stored.
type Recorder interface {
	SaveMarketState(ctx context.Context, state *model.MarketState) error
	SaveSectorRanks(ctx context.Context, ranks []model.SectorRank) error
	// RecordAlerts appends to the history and refreshes the latest view in one transaction.
	RecordAlerts(ctx context.Context, records []model.AlertRecord) error
	SaveRun(ctx context.Context, rep model.RunReport) error
	LatestAlerts(ctx context.Context) ([]model.AlertRecord, error)
	LatestMarketState(ctx context.Context) (*model.MarketState, error)
	Close() error
}
