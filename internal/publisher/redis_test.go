package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreadthSentinel/internal/logger"
	"BreadthSentinel/internal/model"
)

var day = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func TestPublishState(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, "breadth", logger.Nop())

	state := &model.MarketState{Date: day, Regime: model.RegimeBullish, Signal: model.SignalBuy, ExposurePct: 80}
	data, err := json.Marshal(state)
	require.NoError(t, err)

	mock.ExpectSet("breadth:state:2024-06-28", string(data), 0).SetVal("OK")
	mock.ExpectSet("breadth:state:latest", string(data), 0).SetVal("OK")

	require.NoError(t, p.PublishState(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishState_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, "breadth", logger.Nop())

	state := &model.MarketState{Date: day}
	data, _ := json.Marshal(state)
	mock.ExpectSet("breadth:state:2024-06-28", string(data), 0).SetErr(errors.New("connection refused"))

	err := p.PublishState(context.Background(), state)
	assert.ErrorContains(t, err, "connection refused")
}

func TestPublishSectors_EmptyIsArray(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, "breadth", logger.Nop())

	mock.ExpectSet("breadth:sectors:latest", "[]", 0).SetVal("OK")

	require.NoError(t, p.PublishSectors(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishAlerts(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, "breadth", logger.Nop())

	records := []model.AlertRecord{
		{Symbol: "AAPL", Date: day, Detector: model.DetectorBreakout, Direction: model.DirectionBullish, Strength: 0.8},
		{Symbol: "MSFT", Date: day, Detector: model.DetectorPattern, Direction: model.DirectionBearish, Strength: 1},
	}
	a, _ := json.Marshal(records[0])
	b, _ := json.Marshal(records[1])

	mock.ExpectDel("breadth:alerts:latest").SetVal(1)
	mock.ExpectHSet("breadth:alerts:latest", "AAPL|BREAKOUT", string(a), "MSFT|PATTERN", string(b)).SetVal(2)

	require.NoError(t, p.PublishAlerts(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())

	// Nothing to publish only clears the hash.
	mock.ExpectDel("breadth:alerts:latest").SetVal(1)
	require.NoError(t, p.PublishAlerts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
