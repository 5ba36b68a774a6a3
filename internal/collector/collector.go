package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// ErrIndexUnavailable is returned when the index series cannot be loaded.
var ErrIndexUnavailable = errors.New("index series unavailable")

// Failure records a symbol whose bars could not be fetched.
type Failure struct {
	Symbol string
	Err    error
}

// Dataset is everything one classification run reads. Symbols keep universe order.
type Dataset struct {
	Index        model.PriceSeries
	Symbols      []model.PriceSeries
	SectorScores []model.SectorScore
	Failures     []Failure
}

// Collector loads the index and universe bars once per run.
type Collector struct {
	fetcher  Fetcher
	cfg      config.DataSourceConfig
	universe []config.SymbolConfig
	lookback int
	log      zerolog.Logger
}

// NewCollector creates a new Collector. lookback is the sector strength window.
func NewCollector(fetcher Fetcher, cfg config.DataSourceConfig, universe []config.SymbolConfig, lookback int, log zerolog.Logger) *Collector {
	return &Collector{
		fetcher:  fetcher,
		cfg:      cfg,
		universe: universe,
		lookback: lookback,
		log:      log.With().Str("component", "collector").Logger(),
	}
}

// Load fetches the index and every universe symbol concurrently. A failing
// symbol is recorded and skipped; a failing index aborts the load.
func (c *Collector) Load(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{Symbols: make([]model.PriceSeries, len(c.universe))}
	failed := make([]error, len(c.universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	g.Go(func() error {
		bars, err := c.fetcher.FetchDailyBars(gctx, c.cfg.Index, c.cfg.HistoryBars)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, c.cfg.Index, err)
		}
		if len(bars) == 0 {
			return fmt.Errorf("%w: %s returned no bars", ErrIndexUnavailable, c.cfg.Index)
		}
		ds.Index = model.PriceSeries{Symbol: c.cfg.Index, Bars: bars}
		return nil
	})

	for i, sym := range c.universe {
		g.Go(func() error {
			bars, err := c.fetcher.FetchDailyBars(gctx, sym.Symbol, c.cfg.HistoryBars)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = err
				return nil
			}
			ds.Symbols[i] = model.PriceSeries{Symbol: sym.Symbol, Sector: sym.Sector, Bars: bars}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := ds.Symbols[:0]
	for i, s := range ds.Symbols {
		if failed[i] != nil {
			c.log.Warn().Err(failed[i]).Str("symbol", c.universe[i].Symbol).Msg("fetch failed, symbol skipped")
			ds.Failures = append(ds.Failures, Failure{Symbol: c.universe[i].Symbol, Err: failed[i]})
			continue
		}
		kept = append(kept, s)
	}
	ds.Symbols = kept

	scores, err := c.sectorScores(ctx, ds)
	if err != nil {
		return nil, err
	}
	ds.SectorScores = scores

	c.log.Info().
		Int("symbols", len(ds.Symbols)).
		Int("failures", len(ds.Failures)).
		Int("sector_scores", len(ds.SectorScores)).
		Time("last_index_bar", ds.Index.LastDate()).
		Msg("dataset loaded")
	return ds, nil
}

func (c *Collector) sectorScores(ctx context.Context, ds *Dataset) ([]model.SectorScore, error) {
	if src, ok := c.fetcher.(SectorSource); ok && len(ds.Index.Bars) > 0 {
		from := ds.Index.Bars[0].Time
		to := ds.Index.LastDate()
		scores, err := src.FetchSectorScores(ctx, from, to)
		if err != nil {
			c.log.Warn().Err(err).Msg("sector scores unavailable from provider, deriving from prices")
		} else if len(scores) > 0 {
			return scores, nil
		}
	}
	return DeriveSectorScores(ds.Symbols, indexDates(ds.Index), c.lookback), nil
}

func indexDates(s model.PriceSeries) []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = model.Day(b.Time)
	}
	return out
}
