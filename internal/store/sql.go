package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQL keeps every key as one row of a kv table. The dialect-specific
// statements are chosen by NewSQLite and NewPostgres.
type SQL struct {
	db       *sql.DB
	getQuery string
	setQuery string
}

// Get reads the value row of key.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set upserts the value row of key.
func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
