// Package publisher mirrors the latest classification outputs into Redis for
// API consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"BreadthSentinel/internal/model"
)

// RedisPublisher writes JSON snapshots under a key prefix:
//
//	<prefix>:state:latest        MarketState of the last run
//	<prefix>:state:<YYYY-MM-DD>  MarketState per date
//	<prefix>:sectors:latest      SectorRank list of the last run
//	<prefix>:alerts:latest       hash of "<symbol>|<detector>" to AlertRecord
type RedisPublisher struct {
	client redis.Cmdable
	prefix string
	log    zerolog.Logger
}

// NewRedisPublisher creates a publisher over an existing client.
func NewRedisPublisher(client redis.Cmdable, prefix string, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "redis_publisher").Logger(),
	}
}

func (p *RedisPublisher) key(parts ...string) string {
	k := p.prefix
	for _, s := range parts {
		k += ":" + s
	}
	return k
}

// PublishState stores state as the latest snapshot and under its date.
func (p *RedisPublisher) PublishState(ctx context.Context, state *model.MarketState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal market state: %w", err)
	}
	if err := p.client.Set(ctx, p.key("state", state.Date.Format(model.DateLayout)), string(data), 0).Err(); err != nil {
		return fmt.Errorf("publish dated state: %w", err)
	}
	if err := p.client.Set(ctx, p.key("state", "latest"), string(data), 0).Err(); err != nil {
		return fmt.Errorf("publish latest state: %w", err)
	}
	return nil
}

// PublishSectors replaces the latest sector ranking.
func (p *RedisPublisher) PublishSectors(ctx context.Context, ranks []model.SectorRank) error {
	if ranks == nil {
		ranks = []model.SectorRank{}
	}
	data, err := json.Marshal(ranks)
	if err != nil {
		return fmt.Errorf("marshal sector ranks: %w", err)
	}
	if err := p.client.Set(ctx, p.key("sectors", "latest"), string(data), 0).Err(); err != nil {
		return fmt.Errorf("publish sectors: %w", err)
	}
	return nil
}

// PublishAlerts replaces the latest-alert hash with records, which should
// already hold one record per symbol and detector.
func (p *RedisPublisher) PublishAlerts(ctx context.Context, records []model.AlertRecord) error {
	key := p.key("alerts", "latest")
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear latest alerts: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal alert %s/%s: %w", r.Symbol, r.Detector, err)
		}
		values = append(values, r.Symbol+"|"+string(r.Detector), string(data))
	}
	if err := p.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("publish latest alerts: %w", err)
	}
	p.log.Debug().Int("alerts", len(records)).Msg("latest alerts published")
	return nil
}
