package store

import (
	"context"
	"fmt"

	"roster/internal/config"
)

// Open returns the KV backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Store) (KV, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLite(cfg.SQLitePath)
	case "file":
		return NewDir(cfg.StateDir)
	case "redis":
		r := NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return r, nil
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
