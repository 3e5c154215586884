// Package application assembles the storage backend and use cases shared by the binaries.
package application

import (
	"context"
	"fmt"
	"time"

	"research-orchestrator/internal/config"
	"research-orchestrator/internal/domain/ports/repository"
	pg "research-orchestrator/internal/infra/db/postgres"
	"research-orchestrator/internal/infra/db/sqlite"
	red "research-orchestrator/internal/infra/redis"

	"github.com/rs/zerolog"
)

// Storage is one backend's set of repositories.
type Storage struct {
	Jobs    repository.ResearchJobRepository
	Ledgers repository.LedgerRepository
	Keys    repository.APIKeyRepository
	Tx      repository.TransactionManager

	stats func() (total, idle, inUse int32)
	close func()
}

// OpenStorage connects the configured driver and, for Postgres with
// auto_migrate, applies pending migrations. SQLite always ensures its schema.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*Storage, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &Storage{
			Jobs:    pg.NewResearchJobRepo(pool),
			Ledgers: pg.NewLedgerRepo(pool),
			Keys:    pg.NewAPIKeyRepo(pool),
			Tx:      pg.NewTxManager(pool),
			stats: func() (int32, int32, int32) {
				st := pool.Stat()
				return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
			},
			close: pool.Close,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.URL)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Jobs:    sqlite.NewResearchJobRepo(db),
			Ledgers: sqlite.NewLedgerRepo(db),
			Keys:    sqlite.NewAPIKeyRepo(db),
			Tx:      sqlite.NewTxManager(db),
			stats: func() (int32, int32, int32) {
				st := db.Stats()
				return int32(st.OpenConnections), int32(st.Idle), int32(st.InUse)
			},
			close: func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// WithJobCache puts the Redis read-through cache in front of the job repository.
func (s *Storage) WithJobCache(cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) {
	s.Jobs = pg.NewResearchJobCacheDecorator(s.Jobs, cache, ttl, logger)
}

// PoolStats reports total, idle and in-use connections.
func (s *Storage) PoolStats() (total, idle, inUse int32) {
	return s.stats()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}
