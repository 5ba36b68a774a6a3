package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// Guarded throttles a Fetcher with a token bucket and stops calling it while
// the provider keeps failing.
type Guarded struct {
	next    Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded wraps next with the rate limit and breaker settings of cfg.
func NewGuarded(next Fetcher, cfg config.DataSourceConfig, log zerolog.Logger) *Guarded {
	log = log.With().Str("component", "fetch_guard").Str("provider", next.Name()).Logger()
	failures := cfg.BreakerFailures
	st := gobreaker.Settings{
		Name:    next.Name(),
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: providerHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// providerHealthy reports whether err leaves the provider itself in good health.
// Symbol-level misses and cancellations do not trip the breaker.
func providerHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, ErrSymbolNotFound) ||
		errors.Is(err, context.Canceled)
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.OHLCV, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return g.next.FetchDailyBars(ctx, symbol, bars)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.OHLCV), nil
}

// FetchSectorScores forwards to the wrapped fetcher when it is a SectorSource.
func (g *Guarded) FetchSectorScores(ctx context.Context, from, to time.Time) ([]model.SectorScore, error) {
	src, ok := g.next.(SectorSource)
	if !ok {
		return nil, nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return src.FetchSectorScores(ctx, from, to)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.SectorScore), nil
}
