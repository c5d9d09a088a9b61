package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/batch"
	"github.com/dusk-indust/regenmerge/internal/config"
	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/provenance"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// Compile-time assertion: *Indexer records batch results.
var _ batch.Recorder = (*Indexer)(nil)

// Indexer classifies the declarations of parsed units and writes them to a
// Store. Writes are serialized, so one Indexer may be shared by batch
// workers.
type Indexer struct {
	store      Store
	classifier *provenance.Classifier
	loader     *source.Loader
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewIndexer creates an Indexer. A nil classifier uses the default markers
// and a nil logger discards output.
func NewIndexer(store Store, adapter source.Adapter, classifier *provenance.Classifier, logger *zap.Logger) *Indexer {
	if classifier == nil {
		classifier = provenance.NewClassifier(provenance.DefaultMarkers())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:      store,
		classifier: classifier,
		loader:     source.NewLoader(adapter),
		logger:     logger,
	}
}

// Store returns the backing store.
func (ix *Indexer) Store() Store {
	return ix.store
}

// Record replaces whatever the index holds for path with the declarations
// of unit.
func (ix *Indexer) Record(ctx context.Context, path string, unit *decl.Unit) error {
	_, err := ix.record(ctx, path, unit)
	return err
}

func (ix *Indexer) record(ctx context.Context, path string, unit *decl.Unit) (int, error) {
	if unit == nil {
		return 0, fmt.Errorf("record %s: nil unit", path)
	}
	decls := ix.Declarations(path, unit)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.RemoveFile(ctx, path); err != nil {
		return 0, fmt.Errorf("record %s: %w", path, err)
	}
	if err := ix.store.AddFile(ctx, FileNode{Path: path, Language: unit.Language, DeclCount: len(decls)}); err != nil {
		return 0, fmt.Errorf("record %s: %w", path, err)
	}
	for _, d := range decls {
		if err := ix.store.AddDecl(ctx, d); err != nil {
			return 0, fmt.Errorf("record %s: %w", path, err)
		}
	}
	ix.logger.Debug("indexed file", zap.String("path", path), zap.Int("decls", len(decls)))
	return len(decls), nil
}

// Declarations flattens unit into index nodes. Types and fields are
// classified from their comments and annotations the same way methods are.
// Nodes with a repeated ID keep the first occurrence.
func (ix *Indexer) Declarations(path string, unit *decl.Unit) []DeclNode {
	var out []DeclNode
	seen := make(map[string]bool)
	add := func(d DeclNode) {
		if !seen[d.ID()] {
			seen[d.ID()] = true
			out = append(out, d)
		}
	}
	for _, t := range unit.Types {
		add(DeclNode{
			FilePath:   path,
			TypeName:   t.Name,
			Kind:       DeclKindType,
			Name:       t.Name,
			Provenance: ix.classifier.Classify(decl.Method{Comment: t.Comment, Annotations: t.Annotations}),
		})
		for _, f := range t.Fields {
			prov := ix.classifier.Classify(decl.Method{Comment: f.Comment, Annotations: f.Annotations})
			for _, name := range f.Names() {
				add(DeclNode{
					FilePath:   path,
					TypeName:   t.Name,
					Kind:       DeclKindField,
					Name:       name,
					Provenance: prov,
				})
			}
		}
		for _, m := range t.Methods {
			add(DeclNode{
				FilePath:   path,
				TypeName:   t.Name,
				Kind:       DeclKindMethod,
				Name:       m.Name,
				Signature:  m.Signature().String(),
				Provenance: ix.classifier.Classify(m),
			})
		}
	}
	return out
}

// DirResult summarizes an IndexDir run.
type DirResult struct {
	Files   int `json:"files"`
	Decls   int `json:"decls"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IndexDir parses every supported file under dir that passes the include
// and exclude globs and records it. Files that fail to parse are counted
// and reported in the returned error; the walk continues past them.
func (ix *Indexer) IndexDir(ctx context.Context, dir string, include, exclude []string) (*DirResult, error) {
	units, err := batch.Discover(dir, dir, include, exclude, config.DefaultBackupDir)
	if err != nil {
		return nil, err
	}

	res := &DirResult{}
	var result *multierror.Error
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, ok := source.LanguageForPath(u.Generated); !ok {
			res.Skipped++
			continue
		}
		var n int
		unit, _, err := ix.loader.Load(ctx, u.Generated)
		if err == nil {
			n, err = ix.record(ctx, u.Generated, unit)
		}
		if err != nil {
			if errors.Is(err, source.ErrAbsent) {
				res.Skipped++
				continue
			}
			ix.logger.Warn("index file", zap.String("path", u.Generated), zap.Error(err))
			res.Failed++
			result = multierror.Append(result, fmt.Errorf("%s: %w", u.Rel, err))
			continue
		}
		res.Files++
		res.Decls += n
	}
	return res, result.ErrorOrNil()
}
