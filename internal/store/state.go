package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"roster/internal/ledger"
)

// Keys of the two persisted collections.
const (
	StudentsKey = "pt_students"
	LogsKey     = "pt_logs"
)

// State reads and writes the ledger collections as two JSON documents.
type State struct {
	kv  KV
	log zerolog.Logger
}

// NewState wraps kv with the roster load/save contract.
func NewState(kv KV, log zerolog.Logger) *State {
	return &State{kv: kv, log: log}
}

// Load reads both collections. A key that is absent, unreadable or does
// not decode yields an empty collection; Load never fails.
func (s *State) Load(ctx context.Context) ledger.State {
	return ledger.State{
		Students: loadKey[ledger.Student](ctx, s, StudentsKey),
		Entries:  loadKey[ledger.Entry](ctx, s, LogsKey),
	}
}

func loadKey[T any](ctx context.Context, s *State, key string) []T {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.log.Info().Str("key", key).Msg("no stored value, starting empty")
		return []T{}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("stored value unreadable, starting empty")
		return []T{}
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("stored value corrupt, starting empty")
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// Save writes both collections in full. Both writes are attempted even if
// the first fails.
func (s *State) Save(ctx context.Context, st ledger.State) error {
	return errors.Join(
		saveKey(ctx, s.kv, StudentsKey, st.Students),
		saveKey(ctx, s.kv, LogsKey, st.Entries),
	)
}

func saveKey[T any](ctx context.Context, kv KV, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
