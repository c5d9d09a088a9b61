package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/provenance"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func method(name, text string, comment ...string) decl.Method {
	return decl.Method{Name: name, Text: text, Comment: comment}
}

func field(typ string, names ...string) decl.Field {
	f := decl.Field{Modifiers: "private"}
	for _, n := range names {
		f.Bindings = append(f.Bindings, decl.Binding{Name: n, Type: typ})
	}
	return f
}

func unit(types ...decl.Type) *decl.Unit {
	return &decl.Unit{Language: decl.LangJava, Types: types}
}

func methodTexts(t *decl.Type) []string {
	out := make([]string, 0, len(t.Methods))
	for _, m := range t.Methods {
		out = append(out, m.Text)
	}
	return out
}

// ---------------------------------------------------------------------------
// TestEngine_Merge
// ---------------------------------------------------------------------------

func TestEngine_NewFileReturnsGenerated(t *testing.T) {
	gen := unit(decl.Type{Name: "Foo"})
	merged, err := NewEngine(nil).Merge(nil, gen)
	require.NoError(t, err)
	assert.Same(t, gen, merged)
}

func TestEngine_MissingPrimary(t *testing.T) {
	e := NewEngine(nil)

	_, err := e.Merge(unit(decl.Type{Name: "Foo"}), unit())
	var mp *MissingPrimaryDeclarationError
	require.True(t, errors.As(err, &mp))
	assert.Equal(t, SideGenerated, mp.Side)

	_, err = e.Merge(unit(), unit(decl.Type{Name: "Foo"}))
	require.True(t, errors.As(err, &mp))
	assert.Equal(t, SideExisting, mp.Side)
}

func TestEngine_MethodProvenance(t *testing.T) {
	existing := unit(decl.Type{Name: "Foo", Methods: []decl.Method{
		method("manual", "manual v1", "// Manual"),
		method("gen", "gen v1", "// Generated"),
		method("plain", "plain v1"),
		method("both", "both v1", "// Generated", "// Manual"),
	}})
	generated := unit(decl.Type{Name: "Foo", Methods: []decl.Method{
		method("manual", "manual v2", "// Generated"),
		method("gen", "gen v2", "// Generated"),
		method("plain", "plain v2", "// Generated"),
		method("both", "both v2", "// Generated"),
		method("fresh", "fresh v1", "// Generated"),
	}})

	merged, err := NewEngine(nil).Merge(existing, generated)
	require.NoError(t, err)
	assert.Equal(t, []string{"manual v1", "gen v2", "plain v1", "both v1", "fresh v1"},
		methodTexts(merged.Primary()))
}

func TestEngine_AnnotationMarksGenerated(t *testing.T) {
	old := method("gen", "gen v1")
	old.Annotations = []decl.Annotation{{Name: "Generated", Text: "@Generated"}}
	existing := unit(decl.Type{Name: "Foo", Methods: []decl.Method{old}})
	generated := unit(decl.Type{Name: "Foo", Methods: []decl.Method{method("gen", "gen v2")}})

	merged, err := NewEngine(nil).Merge(existing, generated)
	require.NoError(t, err)
	assert.Equal(t, []string{"gen v2"}, methodTexts(merged.Primary()))
}

func TestEngine_CustomMarkers(t *testing.T) {
	c := provenance.NewClassifier(provenance.Markers{Generated: "@generated", Manual: "@keep"})
	existing := unit(decl.Type{Name: "Foo", Methods: []decl.Method{
		method("a", "a v1", "// @generated"),
		method("b", "b v1", "// Generated"),
	}})
	generated := unit(decl.Type{Name: "Foo", Methods: []decl.Method{
		method("a", "a v2"),
		method("b", "b v2"),
	}})

	merged, err := NewEngine(c).Merge(existing, generated)
	require.NoError(t, err)
	assert.Equal(t, []string{"a v2", "b v1"}, methodTexts(merged.Primary()))
}

func TestEngine_SignatureIgnoresReturnAndParamNames(t *testing.T) {
	ex := method("bar", "int bar(int x)", "// Manual")
	ex.Params = []decl.Param{{Name: "x", Type: "int"}}
	g := method("bar", "long bar(int y)", "// Generated")
	g.Params = []decl.Param{{Name: "y", Type: "int"}}
	overload := method("bar", "long bar(long y)", "// Generated")
	overload.Params = []decl.Param{{Name: "y", Type: "long"}}

	merged, err := NewEngine(nil).Merge(
		unit(decl.Type{Name: "Foo", Methods: []decl.Method{ex}}),
		unit(decl.Type{Name: "Foo", Methods: []decl.Method{g, overload}}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"int bar(int x)", "long bar(long y)"}, methodTexts(merged.Primary()))
}

func TestEngine_FieldsNeverRetyped(t *testing.T) {
	existing := unit(decl.Type{Name: "Foo", Fields: []decl.Field{field("int", "a")}})
	gen := field("long", "a", "d")
	gen.Text = "private long a, d;"
	generated := unit(decl.Type{Name: "Foo", Fields: []decl.Field{gen, field("String", "b")}})

	merged, err := NewEngine(nil).Merge(existing, generated)
	require.NoError(t, err)

	fields := merged.Primary().Fields
	require.Len(t, fields, 3)
	assert.Equal(t, "int", fields[0].Bindings[0].Type)
	assert.Equal(t, []string{"d"}, fields[1].Names())
	assert.Empty(t, fields[1].Text, "reduced declaration is re-synthesized")
	assert.Equal(t, []string{"b"}, fields[2].Names())

	assert.Equal(t, "private long a, d;", generated.Primary().Fields[0].Text, "generated input untouched")
}

func TestEngine_ImportsAndAnnotationsDeduplicated(t *testing.T) {
	existing := unit(decl.Type{Name: "Foo", Annotations: []decl.Annotation{{Name: "Entity", Text: "@Entity"}}})
	existing.Imports = []decl.Import{{Path: "java.util.List"}}
	generated := unit(decl.Type{Name: "Foo", Annotations: []decl.Annotation{
		{Name: "Entity", Text: "@Entity(name = \"x\")"},
		{Name: "Table", Text: "@Table"},
	}})
	generated.Imports = []decl.Import{{Path: "java.util.List"}, {Path: "java.util.Map"}, {Path: "java.util.Map"}}

	merged, err := NewEngine(nil).Merge(existing, generated)
	require.NoError(t, err)
	assert.Equal(t, []decl.Import{{Path: "java.util.List"}, {Path: "java.util.Map"}}, merged.Imports)
	assert.Equal(t, []decl.Annotation{
		{Name: "Entity", Text: "@Entity"},
		{Name: "Table", Text: "@Table"},
	}, merged.Primary().Annotations)
}

func TestEngine_SecondaryTypes(t *testing.T) {
	existing := unit(
		decl.Type{Name: "Foo"},
		decl.Type{Name: "Bar", Fields: []decl.Field{field("int", "x")}},
	)
	generated := unit(
		decl.Type{Name: "Foo"},
		decl.Type{Name: "Bar", Fields: []decl.Field{field("int", "y")}},
		decl.Type{Name: "Baz"},
	)

	merged, err := NewEngine(nil).Merge(existing, generated)
	require.NoError(t, err)
	require.Len(t, merged.Types, 3)
	assert.Equal(t, []string{"x", "y"}, merged.Types[1].FieldNames())
	assert.Equal(t, "Baz", merged.Types[2].Name)
	assert.Len(t, existing.Types, 2, "existing input untouched")
	assert.Len(t, existing.Types[1].Fields, 1)
}

func TestEngine_PrimaryMergedByPosition(t *testing.T) {
	merged, err := NewEngine(nil).Merge(
		unit(decl.Type{Name: "Foo"}),
		unit(decl.Type{Name: "Renamed", Fields: []decl.Field{field("int", "a")}}),
	)
	require.NoError(t, err)
	assert.Equal(t, "Foo", merged.Primary().Name)
	assert.Equal(t, []string{"a"}, merged.Primary().FieldNames())
}

func TestEngine_LayoutExistingWins(t *testing.T) {
	merged, err := NewEngine(nil).Merge(
		unit(decl.Type{Name: "Foo", Layout: map[string]string{"impl": "impl Foo"}}),
		unit(decl.Type{Name: "Foo", Layout: map[string]string{"impl": "impl<T> Foo", "doc": `"""Doc."""`}}),
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"impl": "impl Foo", "doc": `"""Doc."""`}, merged.Primary().Layout)
}

// ---------------------------------------------------------------------------
// TestAnalyze
// ---------------------------------------------------------------------------

func TestAnalyze(t *testing.T) {
	existing := unit(decl.Type{
		Name:   "Foo",
		Fields: []decl.Field{field("int", "a")},
		Methods: []decl.Method{
			method("bar", "bar v1", "// Manual"),
			method("gen", "gen v1", "// Generated"),
			method("same", "same", "// Generated"),
		},
	})
	generated := unit(
		decl.Type{
			Name:   "Foo",
			Fields: []decl.Field{field("long", "a", "b")},
			Methods: []decl.Method{
				method("bar", "bar v2", "// Generated"),
				method("gen", "gen v2", "// Generated"),
				method("same", "same", "// Generated"),
				method("baz", "baz", "// Generated"),
			},
		},
		decl.Type{Name: "Aux", Fields: []decl.Field{field("int", "z")}},
	)

	c := Analyze(existing, generated, nil)
	assert.Equal(t, []string{"b", "Aux.z"}, c.NewFieldNames)
	assert.Equal(t, []string{"baz()"}, c.NewMethodSignatures)
	assert.Equal(t, []string{"gen()"}, c.ReplacedMethodSignatures)
	assert.Equal(t, []string{"bar()"}, c.PreservedMethodSignatures)
	assert.True(t, c.HasChanges())
	assert.True(t, c.NeedsWrite())
}

func TestAnalyze_OverwriteIsNotAChange(t *testing.T) {
	existing := unit(decl.Type{Name: "Foo", Methods: []decl.Method{method("gen", "v1", "// Generated")}})
	generated := unit(decl.Type{Name: "Foo", Methods: []decl.Method{method("gen", "v2", "// Generated")}})

	c := Analyze(existing, generated, nil)
	assert.False(t, c.HasChanges())
	assert.True(t, c.NeedsWrite())
	assert.Equal(t, []string{"gen()"}, c.ReplacedMethodSignatures)
}

func TestAnalyze_NilExisting(t *testing.T) {
	generated := unit(decl.Type{
		Name:    "Foo",
		Fields:  []decl.Field{field("int", "a")},
		Methods: []decl.Method{method("bar", "bar")},
	})
	c := Analyze(nil, generated, nil)
	assert.Equal(t, []string{"a"}, c.NewFieldNames)
	assert.Equal(t, []string{"bar()"}, c.NewMethodSignatures)
}
