package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisTemplateCache keeps rendered-ready templates close to the dispatcher
type RedisTemplateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTemplateCache creates a cache whose entries live for ttl
func NewRedisTemplateCache(rdb *redis.Client, ttl time.Duration) *RedisTemplateCache {
	return &RedisTemplateCache{rdb: rdb, ttl: ttl}
}

func templateKey(tenantID, code string) string {
	return fmt.Sprintf("tpl:%s:%s", tenantID, code)
}

// Get returns nil without error on a miss
func (c *RedisTemplateCache) Get(ctx context.Context, tenantID, code string) (*models.Template, error) {
	raw, err := c.rdb.Get(ctx, templateKey(tenantID, code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var t models.Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Set stores the template. The usage counter is volatile and not trusted
// from the cache.
func (c *RedisTemplateCache) Set(ctx context.Context, t *models.Template) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, templateKey(t.TenantID, t.Code), b, c.ttl).Err()
}

// Invalidate drops the cached template
func (c *RedisTemplateCache) Invalidate(ctx context.Context, tenantID, code string) error {
	return c.rdb.Del(ctx, templateKey(tenantID, code)).Err()
}
