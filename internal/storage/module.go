package storage

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
)

var Module = fx.Options(
	fx.Provide(newDB),
	fx.Provide(newStore),
	fx.Provide(func(s *Store) domain.ResultStore { return s }),
)

func newDB(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*DB, error) {
	db, err := Open(cfg.Storage)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("initializing storage schema", zap.String("driver", cfg.Storage.Driver))
			return db.InitSchema(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}

func newStore(cfg *config.Config, db *DB, logger *zap.Logger) *Store {
	return NewStore(db, cfg.Storage.BatchSize, logger)
}
