package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores each key as <dir>/<key>.json. Writes go to a temporary file
// that is renamed over the previous value, so a crash mid-write never
// leaves a truncated document behind.
type Dir struct {
	path string
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) file(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(d.path, key+".json"), nil
}

// Get reads the document stored under key.
func (d *Dir) Get(_ context.Context, key string) ([]byte, error) {
	name, err := d.file(key)
	if err != nil {
		return nil, err
	}
	v, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return v, err
}

// Set replaces the document under key atomically.
func (d *Dir) Set(_ context.Context, key string, value []byte) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}

// Ping checks that the directory still exists.
func (d *Dir) Ping(context.Context) error {
	_, err := os.Stat(d.path)
	return err
}

// Close is a no-op.
func (d *Dir) Close() error { return nil }
