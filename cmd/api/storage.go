package main

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/smart-shortener/internal/config"
	"github.com/SergeiKhy/smart-shortener/internal/repository"
	"go.uber.org/zap"
)

type storage struct {
	links  repository.LinkRepository
	clicks repository.ClickRepository
	close  func()
}

// openStorage подключается к выбранной БД и применяет миграции
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := repository.MigratePostgres(cfg.DB); err != nil {
			return nil, err
		}

		db, err := repository.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to PostgreSQL", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))

		return &storage{
			links:  repository.NewLinkRepository(db),
			clicks: repository.NewClickRepository(db),
			close:  db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := repository.NewSQLiteDB(cfg.SQLite)
		if err != nil {
			return nil, err
		}

		if err := repository.MigrateSQLite(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Opened SQLite database", zap.String("path", cfg.SQLite.Path))

		return &storage{
			links:  repository.NewSQLiteLinkRepository(db),
			clicks: repository.NewSQLiteClickRepository(db),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("Failed to close SQLite database", zap.Error(err))
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
