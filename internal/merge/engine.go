// Package merge reconciles a freshly generated declaration tree with an
// existing, possibly hand-edited one.
package merge

import (
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/provenance"
)

// Engine combines an existing and a generated unit. Merging is additive:
// imports, annotations, fields and methods are only ever added, except for
// existing methods classified as generated, which are replaced in place by
// their regenerated version.
//
// Inputs are never mutated. The merged unit is built from fresh outer
// slices; untouched nested values are shared with the inputs.
type Engine struct {
	classifier *provenance.Classifier
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for merge decisions.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine. A nil classifier uses the default markers.
func NewEngine(classifier *provenance.Classifier, opts ...EngineOption) *Engine {
	if classifier == nil {
		classifier = provenance.NewClassifier(provenance.DefaultMarkers())
	}
	e := &Engine{classifier: classifier, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classifier returns the provenance classifier used by the engine.
func (e *Engine) Classifier() *provenance.Classifier {
	return e.classifier
}

// Merge combines existing and generated. A nil existing is the new-file
// case and returns generated unchanged.
func (e *Engine) Merge(existing, generated *decl.Unit) (*decl.Unit, error) {
	if generated == nil || len(generated.Types) == 0 {
		return nil, &MissingPrimaryDeclarationError{Side: SideGenerated}
	}
	if existing == nil {
		return generated, nil
	}
	if len(existing.Types) == 0 {
		return nil, &MissingPrimaryDeclarationError{Side: SideExisting}
	}

	merged := &decl.Unit{
		Language: existing.Language,
		Header:   existing.Header,
		Imports:  mergeImports(existing.Imports, generated.Imports),
		Chunks:   append([]decl.Chunk(nil), existing.Chunks...),
		Types:    make([]decl.Type, len(existing.Types), len(existing.Types)+len(generated.Types)-1),
	}
	copy(merged.Types, existing.Types)

	primary, genPrimary := existing.Types[0], generated.Types[0]
	if primary.Name != genPrimary.Name {
		e.logger.Warn("primary type names differ; merging by position",
			zap.String("existing", primary.Name),
			zap.String("generated", genPrimary.Name))
	}
	merged.Types[0] = e.mergeType(primary, genPrimary)

	for _, g := range generated.Types[1:] {
		idx := -1
		for i := 1; i < len(merged.Types); i++ {
			if merged.Types[i].Name == g.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			e.logger.Debug("append type", zap.String("type", g.Name))
			merged.Types = append(merged.Types, g)
			continue
		}
		merged.Types[idx] = e.mergeType(merged.Types[idx], g)
	}
	return merged, nil
}

func (e *Engine) mergeType(existing, generated decl.Type) decl.Type {
	out := existing
	out.Annotations = mergeAnnotations(existing.Annotations, generated.Annotations)
	out.Fields = mergeFields(existing.Fields, generated.Fields)
	out.Methods = e.mergeMethods(existing.Name, existing.Methods, generated.Methods)
	out.Layout = mergeLayout(existing.Layout, generated.Layout)
	return out
}

func mergeImports(existing, generated []decl.Import) []decl.Import {
	out := append([]decl.Import(nil), existing...)
	seen := make(map[string]bool, len(existing)+len(generated))
	for _, imp := range existing {
		seen[imp.Key()] = true
	}
	for _, imp := range generated {
		if seen[imp.Key()] {
			continue
		}
		seen[imp.Key()] = true
		out = append(out, imp)
	}
	return out
}

func mergeAnnotations(existing, generated []decl.Annotation) []decl.Annotation {
	out := append([]decl.Annotation(nil), existing...)
	seen := make(map[string]bool, len(existing)+len(generated))
	for _, a := range existing {
		seen[a.Name] = true
	}
	for _, a := range generated {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out
}

// mergeFields appends, per generated declaration, the bindings whose name
// is not yet declared. Existing declarations are never removed or retyped.
// A declaration that loses some of its bindings is re-synthesized from its
// remaining parts.
func mergeFields(existing, generated []decl.Field) []decl.Field {
	out := append([]decl.Field(nil), existing...)
	names := make(map[string]bool)
	for _, f := range existing {
		for _, n := range f.Names() {
			names[n] = true
		}
	}

	for _, g := range generated {
		keep := lo.Filter(g.Bindings, func(b decl.Binding, _ int) bool {
			if names[b.Name] {
				return false
			}
			names[b.Name] = true
			return true
		})
		if len(keep) == 0 {
			continue
		}
		if len(keep) < len(g.Bindings) {
			g.Bindings = keep
			g.Text = ""
		}
		out = append(out, g)
	}
	return out
}

// mergeMethods appends methods whose signature is new and replaces existing
// generated methods in place. Manual and unmarked methods are kept.
func (e *Engine) mergeMethods(typeName string, existing, generated []decl.Method) []decl.Method {
	out := append([]decl.Method(nil), existing...)
	index := make(map[decl.Signature]int, len(existing))
	for i, m := range existing {
		sig := m.Signature()
		if _, ok := index[sig]; !ok {
			index[sig] = i
		}
	}

	seen := make(map[decl.Signature]bool, len(generated))
	for _, g := range generated {
		sig := g.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true

		i, ok := index[sig]
		if !ok {
			e.logger.Debug("add method", zap.String("type", typeName), zap.Stringer("signature", sig))
			out = append(out, g)
			continue
		}
		if !e.classifier.Replaceable(out[i]) {
			e.logger.Debug("preserve method",
				zap.String("type", typeName),
				zap.Stringer("signature", sig),
				zap.Stringer("provenance", e.classifier.Classify(out[i])))
			continue
		}
		e.logger.Debug("replace method", zap.String("type", typeName), zap.Stringer("signature", sig))
		out[i] = g
	}
	return out
}

func mergeLayout(existing, generated map[string]string) map[string]string {
	if len(existing) == 0 && len(generated) == 0 {
		return existing
	}
	out := make(map[string]string, len(existing)+len(generated))
	for k, v := range generated {
		out[k] = v
	}
	for k, v := range existing {
		out[k] = v
	}
	return out
}
