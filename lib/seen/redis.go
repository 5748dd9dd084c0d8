package seen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // refreshed on every mark
}

// RedisCache keeps one set per source, expiring TTL after the last mark.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisCache(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL, log: log}, nil
}

func setKey(source string) string {
	return "tickerwatch:seen:" + source
}

func (c *RedisCache) Seen(ctx context.Context, source, id string) bool {
	ok, err := c.client.SIsMember(ctx, setKey(source), id).Result()
	if err != nil {
		c.log.Sugar().Debugw("Seen-cache lookup failed", "source", source, "id", id, "err", err)
		return false
	}
	return ok
}

func (c *RedisCache) MarkSeen(ctx context.Context, source, id string) {
	key := setKey(source)
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, key, id)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Sugar().Debugw("Seen-cache mark failed", "source", source, "id", id, "err", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
