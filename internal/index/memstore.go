package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu    sync.RWMutex
	files map[string]FileNode
	decls map[string]DeclNode // key: DeclNode.ID()
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string]FileNode),
		decls: make(map[string]DeclNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddFile stores a file node keyed by its path.
func (m *MemStore) AddFile(_ context.Context, node FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[node.Path] = node
	return nil
}

// AddDecl stores a declaration keyed by its ID.
func (m *MemStore) AddDecl(_ context.Context, node DeclNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decls[node.ID()] = node
	return nil
}

// RemoveFile deletes the file and its declarations.
func (m *MemStore) RemoveFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	for id, d := range m.decls {
		if d.FilePath == path {
			delete(m.decls, id)
		}
	}
	return nil
}

// GetFile returns the file node for the given path, or nil if not found.
func (m *MemStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// QueryDecls returns declarations matching q, ordered by ID.
func (m *MemStore) QueryDecls(_ context.Context, q Query) ([]DeclNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerName := strings.ToLower(q.Name)
	var results []DeclNode
	for _, d := range m.decls {
		if lowerName != "" && !strings.Contains(strings.ToLower(d.Name), lowerName) {
			continue
		}
		if q.Kind != "" && d.Kind != q.Kind {
			continue
		}
		if q.Provenance != nil && d.Provenance != *q.Provenance {
			continue
		}
		if q.FilePath != "" && d.FilePath != q.FilePath {
			continue
		}
		results = append(results, d)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID() < results[j].ID() })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Stats returns file and declaration counts.
func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &Stats{FileCount: len(m.files), DeclCount: len(m.decls)}
	for _, d := range m.decls {
		switch d.Provenance {
		case decl.Generated:
			s.Generated++
		case decl.Manual:
			s.Manual++
		default:
			s.Unmarked++
		}
	}
	return s, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
