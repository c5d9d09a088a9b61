//go:build !cgo

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/index"
)

// openStore falls back to an in-memory index; Kuzu needs cgo.
func openStore(ctx context.Context, path string, logger *zap.Logger) (index.Store, error) {
	logger.Warn("built without cgo: the index is kept in memory and not persisted", zap.String("path", path))
	store := index.NewMemStore()
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
