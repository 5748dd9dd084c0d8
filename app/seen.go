package app

import (
	"context"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/seen"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSeenCache connects to redis when configured. The cache is advisory,
// so an unreachable server only downgrades to the no-op cache.
func NewSeenCache(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) seen.Cache {
	if cfg.Redis.Addr == "" {
		log.Info("Seen-item cache disabled since REDIS_ADDR is not set")
		return seen.Noop{}
	}

	cache, err := seen.NewRedisCache(context.Background(), seen.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.SeenTTL,
	}, log)
	if err != nil {
		log.Sugar().Warnw("Seen-item cache unavailable, continuing without it", "err", err)
		return seen.Noop{}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return cache.Close()
		},
	})
	return cache
}
