package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

const (
	movementKeyPrefix = "movement:"
	movementTTL       = 24 * time.Hour
)

var _ port.CacheRepository = (*RedisAdapter)(nil)

// RedisAdapter caches committed movements by event id so replays skip the database.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: movementTTL}
}

func (r *RedisAdapter) LookupMovement(ctx context.Context, id string) (*domain.Movement, error) {
	raw, err := r.client.Get(ctx, movementKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m domain.Movement
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode cached movement %s: %w", id, err)
	}
	return &m, nil
}

func (r *RedisAdapter) RememberMovement(ctx context.Context, m domain.Movement) (bool, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("encode movement %s: %w", m.ID, err)
	}

	ok, err := r.client.SetNX(ctx, movementKeyPrefix+m.ID, raw, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
