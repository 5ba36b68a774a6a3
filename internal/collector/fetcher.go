package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/model"
)

// ErrSymbolNotFound is wrapped by fetch errors that concern one symbol only,
// such as an unknown or delisted ticker. It does not count against the provider.
var ErrSymbolNotFound = errors.New("symbol not found")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.OHLCV, error)
	Name() string
}

// SectorSource is implemented by providers that publish sector strength scores
// directly. Without one, scores are derived from member prices.
type SectorSource interface {
	FetchSectorScores(ctx context.Context, from, to time.Time) ([]model.SectorScore, error)
}

// New builds the configured fetcher, throttled and guarded by a circuit breaker.
func New(cfg config.DataSourceConfig, proxy string, log zerolog.Logger) (Fetcher, error) {
	var f Fetcher
	switch cfg.Provider {
	case "yahoo":
		f = NewYahooFetcher(proxy, cfg.Timeout, log)
	case "rest":
		f = NewRESTFetcher(cfg.BaseURL, cfg.APIKey, proxy, cfg.Timeout, log)
	case "mock":
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Provider)
	}
	return NewGuarded(f, cfg, log), nil
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
