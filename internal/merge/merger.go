package merge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/provenance"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// Result is the outcome of merging one unit.
type Result struct {
	Path         string         `json:"path,omitempty"`
	Language     decl.Language  `json:"language"`
	MergedSource []byte         `json:"-"`
	IsNewFile    bool           `json:"isNewFile"`
	Changes      ChangeAnalysis `json:"changes"`
	Merged       *decl.Unit     `json:"-"`
}

// HasChanges reports whether the merge added fields or methods.
func (r *Result) HasChanges() bool {
	return r.Changes.HasChanges()
}

// Merger runs the full pipeline for one unit: load both sides, merge,
// analyze the additions and print the merged tree.
type Merger struct {
	adapter source.Adapter
	loader  *source.Loader
	engine  *Engine
	logger  *zap.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger for the merger and its engine.
func WithLogger(l *zap.Logger) Option {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMarkers sets the provenance marker vocabulary.
func WithMarkers(markers provenance.Markers) Option {
	return func(m *Merger) {
		m.engine = NewEngine(provenance.NewClassifier(markers))
	}
}

// NewMerger creates a Merger backed by adapter.
func NewMerger(adapter source.Adapter, opts ...Option) *Merger {
	m := &Merger{
		adapter: adapter,
		loader:  source.NewLoader(adapter),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	classifier := provenance.NewClassifier(provenance.DefaultMarkers())
	if m.engine != nil {
		classifier = m.engine.Classifier()
	}
	m.engine = NewEngine(classifier, WithEngineLogger(m.logger))
	return m
}

// Engine returns the merge engine.
func (m *Merger) Engine() *Engine {
	return m.engine
}

// MergeWithExisting merges generated source into the file at existingPath.
// The language is inferred from the path. A missing file is the new-file
// case: the generated source is parsed and printed, and IsNewFile is set.
// Nothing is written to disk.
func (m *Merger) MergeWithExisting(ctx context.Context, generated []byte, existingPath string) (*Result, error) {
	lang, ok := source.LanguageForPath(existingPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupportedLanguage, existingPath)
	}

	existing, err := m.loader.Read(existingPath)
	switch {
	case errors.Is(err, source.ErrAbsent):
		existing = nil
	case err != nil:
		return nil, &IOError{Op: "read", Path: existingPath, Err: errors.Unwrap(err)}
	}

	res, err := m.merge(ctx, lang, existingPath, generated, existing, existing != nil)
	if err != nil {
		return nil, err
	}
	res.Path = existingPath
	return res, nil
}

// MergeSource merges generated into existing source text. A nil existing
// is the new-file case.
func (m *Merger) MergeSource(ctx context.Context, lang decl.Language, generated, existing []byte) (*Result, error) {
	return m.merge(ctx, lang, "", generated, existing, existing != nil)
}

// MergeUnits merges pre-parsed trees and prints the result. A nil
// existing is the new-file case.
func (m *Merger) MergeUnits(existing, generated *decl.Unit) (*Result, error) {
	merged, err := m.engine.Merge(existing, generated)
	if err != nil {
		return nil, err
	}
	out, err := m.adapter.Print(merged)
	if err != nil {
		return nil, fmt.Errorf("print merged unit: %w", err)
	}
	res := &Result{
		Language:     merged.Language,
		MergedSource: out,
		IsNewFile:    existing == nil,
		Changes:      Analyze(existing, generated, m.engine.Classifier()),
		Merged:       merged,
	}
	normalize(&res.Changes)
	return res, nil
}

func (m *Merger) merge(ctx context.Context, lang decl.Language, path string, generated, existing []byte, hasExisting bool) (*Result, error) {
	genUnit, err := m.adapter.Parse(ctx, generated, lang)
	if err != nil {
		return nil, newParseError(SideGenerated, "", err)
	}
	if genUnit.Primary() == nil {
		return nil, &MissingPrimaryDeclarationError{Side: SideGenerated}
	}

	var exUnit *decl.Unit
	if hasExisting {
		exUnit, err = m.adapter.Parse(ctx, existing, lang)
		if err != nil {
			return nil, newParseError(SideExisting, path, err)
		}
		if exUnit.Primary() == nil {
			return nil, &MissingPrimaryDeclarationError{Side: SideExisting, Path: path}
		}
	}

	res, err := m.MergeUnits(exUnit, genUnit)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("merged unit",
		zap.String("path", path),
		zap.String("language", string(lang)),
		zap.Bool("new_file", res.IsNewFile),
		zap.Strings("new_fields", res.Changes.NewFieldNames),
		zap.Strings("new_methods", res.Changes.NewMethodSignatures))
	return res, nil
}

func normalize(c *ChangeAnalysis) {
	if c.NewFieldNames == nil {
		c.NewFieldNames = []string{}
	}
	if c.NewMethodSignatures == nil {
		c.NewMethodSignatures = []string{}
	}
}
