package repository

import (
	"context"
	"fmt"

	"github.com/iconidentify/vidgrab/internal/config"
)

// OpenArtifactIndex builds the index backend selected by cfg.
func OpenArtifactIndex(ctx context.Context, cfg config.IndexConfig) (ArtifactIndex, error) {
	switch cfg.Backend {
	case "", config.IndexMemory:
		return NewMemoryIndex(), nil
	case config.IndexSQLite:
		return NewSQLiteIndex(cfg.SQLitePath)
	case config.IndexRedis:
		return NewRedisIndex(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
