package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"BreadthSentinel/internal/model"
)

// RESTFetcher implements Fetcher and SectorSource against a generic market data REST API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	log     zerolog.Logger
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration, log zerolog.Logger) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		log:     log.With().Str("component", "rest_fetcher").Logger(),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of one daily bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// restScore is the expected JSON shape of one sector strength observation.
type restScore struct {
	Date   string  `json:"date"`
	Sector string  `json:"sector"`
	Score  float64 `json:"score"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, n int) ([]model.OHLCV, error) {
	q := url.Values{"symbol": {symbol}, "limit": {fmt.Sprint(n)}}
	var raw []restBar
	if err := f.get(ctx, "/api/v1/bars/daily?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	bars := make([]model.OHLCV, len(raw))
	for i, b := range raw {
		bars[i] = model.OHLCV{
			Time:   model.Day(time.Unix(b.Timestamp, 0)),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// FetchSectorScores returns provider-computed sector strength between from and to inclusive.
// A 404 means the provider does not publish scores.
func (f *RESTFetcher) FetchSectorScores(ctx context.Context, from, to time.Time) ([]model.SectorScore, error) {
	q := url.Values{"from": {from.Format(model.DateLayout)}, "to": {to.Format(model.DateLayout)}}
	var raw []restScore
	err := f.get(ctx, "/api/v1/sectors/scores?"+q.Encode(), &raw)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch sector scores: %w", err)
	}
	out := make([]model.SectorScore, 0, len(raw))
	for _, s := range raw {
		d, err := time.Parse(model.DateLayout, s.Date)
		if err != nil {
			f.log.Warn().Str("date", s.Date).Str("sector", s.Sector).Msg("skipping sector score with bad date")
			continue
		}
		out = append(out, model.SectorScore{Date: d, SectorID: s.Sector, Score: s.Score})
	}
	return out, nil
}

var errNotFound = fmt.Errorf("status 404: %w", ErrSymbolNotFound)

func (f *RESTFetcher) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
