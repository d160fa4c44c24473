package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"example.com/ltvpipeline/internal/config"
	"example.com/ltvpipeline/internal/logger"
	"example.com/ltvpipeline/internal/storage"
	"example.com/ltvpipeline/internal/storage/memory"
	"example.com/ltvpipeline/internal/storage/postgres"
	"example.com/ltvpipeline/internal/storage/sqlite"
)

// OpenStore connects the configured backend and creates its schema. When
// reset is set every collection is emptied first.
func OpenStore(ctx context.Context, cfg config.StoreConfig, reset bool, log *zap.Logger) (storage.Store, error) {
	var (
		s   storage.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = memory.New()
	case config.DriverSQLite:
		s, err = sqlite.Open(cfg.SQLitePath, log.Named("store.sqlite"), logger.MapGormLogLevel(cfg.GormLogLevel))
	case config.DriverPostgres:
		s, err = postgres.Connect(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if reset {
		if err := s.Reset(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}
	log.Info("store ready", zap.String("driver", cfg.Driver), zap.Bool("reset", reset))
	return s, nil
}
