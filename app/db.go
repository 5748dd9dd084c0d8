package app

import (
	"context"
	"fmt"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	log.Info("Database started", zap.String("driver", cfg.Database.Driver))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	switch cfg.Database.Driver {
	case config.DriverBolt:
		return store.NewBoltStore(cfg.Database.DSN)

	case config.DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormCfg)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db)

	default:
		db, err := store.OpenSQLite(cfg.Database.DSN, gormCfg)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db)
	}
}
