// Package persistence selects the student store backend from configuration.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rmkec/leetcode-leaderboard/config"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/filestore"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/postgres"
	"github.com/rmkec/leetcode-leaderboard/internal/infrastructure/persistence/sqlite"
)

// OpenStore opens the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (student.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		opts := postgres.DefaultPoolOptions()
		if cfg.MaxConns > 0 {
			opts.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			opts.MinConns = cfg.MinConns
		}
		s, err := postgres.Open(ctx, cfg.PostgresURL, opts)
		if err != nil {
			return nil, err
		}
		logger.Info("student store ready", "driver", cfg.Driver)
		return s, nil

	case config.StoreDriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("student store ready", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return s, nil

	case config.StoreDriverFile:
		s, err := filestore.Open(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logger.Info("student store ready", "driver", cfg.Driver, "path", cfg.FilePath)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
