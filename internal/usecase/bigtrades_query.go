package usecase

import (
	"context"
	"time"

	"github.com/pcashcroft/backtest/internal/bigtrades"
	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/pkg/cache"
	"github.com/pcashcroft/backtest/pkg/logger"
)

// BigTradesUseCase serves on-demand big-trade events. Events are recomputed
// from canonical data on every request; an optional short-TTL cache memoizes
// hot queries without giving events a persisted lifecycle.
type BigTradesUseCase struct {
	engine *bigtrades.Engine
	cache  cache.Service
	ttl    time.Duration
	log    *logger.Logger
}

// NewBigTradesUseCase wires the big-trades query path. cache may be nil.
func NewBigTradesUseCase(engine *bigtrades.Engine, c cache.Service, ttl time.Duration, log *logger.Logger) *BigTradesUseCase {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BigTradesUseCase{engine: engine, cache: c, ttl: ttl, log: log}
}

// GetEventsResult is the query response.
type GetEventsResult struct {
	InstrumentID string                 `json:"instrument_id"`
	Session      models.Session         `json:"session"`
	From         models.Date            `json:"from"`
	To           models.Date            `json:"to"`
	Upstream     bigtrades.Upstream     `json:"upstream"`
	Count        int                    `json:"count"`
	Events       []models.BigTradeEvent `json:"events"`
}

// GetEvents computes events for the query, consulting the cache first when
// the query uses the configured threshold. Threshold-override queries bypass
// the cache: they are the experimentation path and should always recompute.
func (uc *BigTradesUseCase) GetEvents(ctx context.Context, q bigtrades.Query) (*GetEventsResult, error) {
	cacheable := uc.cache != nil && q.Threshold == nil
	key := cache.GenerateKeyWithParams("bigtrades",
		q.InstrumentID, q.Session, q.Start, q.End, q.Upstream)

	if cacheable {
		var cached GetEventsResult
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	events, err := uc.engine.Events(ctx, q)
	if err != nil {
		return nil, err
	}
	res := &GetEventsResult{
		InstrumentID: q.InstrumentID,
		Session:      q.Session,
		From:         q.Start,
		To:           q.End,
		Upstream:     q.Upstream,
		Count:        len(events),
		Events:       events,
	}

	if cacheable {
		if err := uc.cache.Set(ctx, key, res, uc.ttl); err != nil {
			uc.log.Warn("big-trades cache set failed", logger.Error(err))
		}
	}
	return res, nil
}
