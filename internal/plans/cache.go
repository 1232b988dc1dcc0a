package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vizora/entitlements/internal/database/models"
)

const activePlansKey = "plans:active"

// Cache holds the public catalog in Redis. A nil *Cache is a permanent miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// GetActive returns the cached catalog. ok is false on a miss.
func (c *Cache) GetActive(ctx context.Context) (plans []models.Plan, ok bool, err error) {
	if c == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, activePlansKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, &plans); err != nil {
		// Drop corrupt data so the next read repopulates it
		c.client.Del(ctx, activePlansKey)
		return nil, false, fmt.Errorf("failed to unmarshal plans: %w", err)
	}
	return plans, true, nil
}

func (c *Cache) SetActive(ctx context.Context, plans []models.Plan) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to marshal plans: %w", err)
	}
	return c.client.Set(ctx, activePlansKey, data, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, activePlansKey).Err()
}
