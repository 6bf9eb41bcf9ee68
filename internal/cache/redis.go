// Package cache provides the redis-backed read-through cache for game lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const (
	gameKeyPrefix = "gamevault:game:"
	pingTimeout   = 5 * time.Second
)

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// GameCache stores JSON-encoded games keyed by id.
type GameCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewGameCache constructs a GameCache whose entries expire after ttl.
func NewGameCache(client redis.Cmdable, ttl time.Duration) *GameCache {
	return &GameCache{client: client, ttl: ttl}
}

// Get returns the cached game and whether it was present.
func (c *GameCache) Get(ctx context.Context, id int) (types.Game, bool, error) {
	data, err := c.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Game{}, false, nil
		}
		return types.Game{}, false, err
	}

	var game types.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return types.Game{}, false, fmt.Errorf("decode cached game %d: %w", id, err)
	}
	return game, true, nil
}

// Set stores game under its id key.
func (c *GameCache) Set(ctx context.Context, game types.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, gameKey(game.ID), data, c.ttl).Err()
}

// Delete evicts the cached entry for id.
func (c *GameCache) Delete(ctx context.Context, id int) error {
	return c.client.Del(ctx, gameKey(id)).Err()
}

func gameKey(id int) string {
	return fmt.Sprintf("%s%d", gameKeyPrefix, id)
}
