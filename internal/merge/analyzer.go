package merge

import (
	"slices"

	"github.com/samber/lo"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/provenance"
)

// ChangeAnalysis summarizes what a merge adds to the existing unit.
type ChangeAnalysis struct {
	// NewFieldNames are field names declared by the generated unit but not
	// by the existing one, in generated order.
	NewFieldNames []string `json:"newFieldNames"`
	// NewMethodSignatures are method signatures present in the generated
	// unit but not in the existing one, in generated order. Methods of
	// secondary types are prefixed with "Type.".
	NewMethodSignatures []string `json:"newMethodSignatures"`

	// The lists below are informational and do not count as changes.

	// ReplacedMethodSignatures are existing generated methods overwritten
	// by a different regenerated version.
	ReplacedMethodSignatures []string `json:"replacedMethodSignatures,omitempty"`
	// PreservedMethodSignatures are existing manual or unmarked methods
	// kept although the generated version differs.
	PreservedMethodSignatures []string `json:"preservedMethodSignatures,omitempty"`
	NewImports                []string `json:"newImports,omitempty"`
	NewAnnotations            []string `json:"newAnnotations,omitempty"`
}

// HasChanges reports whether the merge adds fields or methods. Overwrites
// of generated methods are not counted.
func (c ChangeAnalysis) HasChanges() bool {
	return len(c.NewFieldNames) > 0 || len(c.NewMethodSignatures) > 0
}

// NeedsWrite reports whether the merged output can differ from the
// existing unit: any addition or replacement at all.
func (c ChangeAnalysis) NeedsWrite() bool {
	return c.HasChanges() ||
		len(c.ReplacedMethodSignatures) > 0 ||
		len(c.NewImports) > 0 ||
		len(c.NewAnnotations) > 0
}

// Analyze computes the additions generated brings relative to existing. A
// nil existing reports everything in generated as new.
func Analyze(existing, generated *decl.Unit, classifier *provenance.Classifier) ChangeAnalysis {
	var c ChangeAnalysis
	if generated == nil {
		return c
	}
	if classifier == nil {
		classifier = provenance.NewClassifier(provenance.DefaultMarkers())
	}

	var existingImports []decl.Import
	if existing != nil {
		existingImports = existing.Imports
	}
	known := make(map[string]bool)
	for _, imp := range existingImports {
		known[imp.Key()] = true
	}
	for _, imp := range generated.Imports {
		if !known[imp.Key()] {
			known[imp.Key()] = true
			c.NewImports = append(c.NewImports, imp.Key())
		}
	}

	for i := range generated.Types {
		g := &generated.Types[i]
		var ex *decl.Type
		if existing != nil {
			if i == 0 {
				ex = existing.Primary()
			} else if t := existing.TypeByName(g.Name); t != nil && t != existing.Primary() {
				ex = t
			}
		}
		prefix := ""
		if i > 0 {
			prefix = g.Name + "."
		}
		analyzeType(&c, ex, g, prefix, classifier)
	}
	return c
}

func analyzeType(c *ChangeAnalysis, existing, generated *decl.Type, prefix string, classifier *provenance.Classifier) {
	if existing == nil {
		existing = &decl.Type{}
	}
	fieldNames := make(map[string]bool)
	for _, n := range existing.FieldNames() {
		fieldNames[n] = true
	}

	added := make(map[string]bool)
	for _, a := range generated.Annotations {
		if existing.HasAnnotation(a.Name) || added[a.Name] {
			continue
		}
		added[a.Name] = true
		c.NewAnnotations = append(c.NewAnnotations, prefix+a.Name)
	}

	newFields := lo.Filter(generated.FieldNames(), func(n string, _ int) bool {
		if fieldNames[n] {
			return false
		}
		fieldNames[n] = true
		return true
	})
	c.NewFieldNames = append(c.NewFieldNames, lo.Map(newFields, func(n string, _ int) string {
		return prefix + n
	})...)

	seen := make(map[decl.Signature]bool)
	for _, g := range generated.Methods {
		sig := g.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true

		ex := existing.MethodBySignature(sig)
		switch {
		case ex == nil:
			c.NewMethodSignatures = append(c.NewMethodSignatures, prefix+sig.String())
		case ex.Text == g.Text && slices.Equal(ex.Comment, g.Comment):
		case classifier.Replaceable(*ex):
			c.ReplacedMethodSignatures = append(c.ReplacedMethodSignatures, prefix+sig.String())
		default:
			c.PreservedMethodSignatures = append(c.PreservedMethodSignatures, prefix+sig.String())
		}
	}
}
