// Package index records the declarations of merged files together with
// their provenance so a project can be queried for manual, generated and
// unmarked code.
package index

import (
	"context"
	"io"
)

// Store is the interface for the provenance index backend.
// Implementations: KuzuStore (persistent, cgo), MemStore (in-process).
type Store interface {
	io.Closer

	// InitSchema is called once before any data is inserted.
	InitSchema(ctx context.Context) error

	AddFile(ctx context.Context, node FileNode) error
	AddDecl(ctx context.Context, node DeclNode) error
	// RemoveFile drops a file and all its declarations. Missing files are
	// not an error.
	RemoveFile(ctx context.Context, path string) error

	// GetFile returns nil when the file is not indexed.
	GetFile(ctx context.Context, path string) (*FileNode, error)
	// QueryDecls returns matching declarations ordered by ID.
	QueryDecls(ctx context.Context, q Query) ([]DeclNode, error)

	Stats(ctx context.Context) (*Stats, error)
}
