package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablebook/src/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type eventStore struct {
	*Store
}

func (e *eventStore) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	var event models.Event
	if err := e.conn(ctx).
		Where("id = ?", eventID).
		First(&event).
		Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("event %d", eventID))
	}
	return &event, nil
}

// CachedEvents is a read-through redis cache in front of the event catalog.
// Cache errors are logged and fall through to the inner store.
type CachedEvents struct {
	inner EventStore
	rdb   *redis.Client
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCachedEvents(inner EventStore, rdb *redis.Client, ttl time.Duration, log *zerolog.Logger) *CachedEvents {
	return &CachedEvents{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func EventCacheKey(eventID uint) string {
	return fmt.Sprintf("events:%d", eventID)
}

func (c *CachedEvents) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	key := EventCacheKey(eventID)
	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var event models.Event
		if err := json.Unmarshal(val, &event); err == nil {
			return &event, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cached event")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("event cache read failed")
	}

	event, err := c.inner.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(event)
	if err != nil {
		return event, nil
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("event cache write failed")
	}
	return event, nil
}
