//go:build cgo

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/index"
)

// openStore opens the persistent Kuzu index at path, creating it and its
// schema on first use.
func openStore(ctx context.Context, path string, logger *zap.Logger) (index.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	store, err := index.NewKuzuFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}
	logger.Debug("index opened", zap.String("path", path))
	return store, nil
}
