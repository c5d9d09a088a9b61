package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const fooJava = `public class Foo {
    private int a;

    // Manual
    public int bar() {
        return 1;
    }

    // Generated
    public void baz(String s) {
    }

    public void plain() {
    }
}
`

func newIndexer(t *testing.T, store Store) *Indexer {
	t.Helper()
	a := source.NewTreeSitterAdapter()
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, store.InitSchema(context.Background()))
	return NewIndexer(store, a, nil, nil)
}

func prov(p decl.Provenance) *decl.Provenance { return &p }

func ids(nodes []DeclNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	return out
}

// storeSuite exercises a Store implementation. Shared by the in-memory and
// Kuzu tests.
func storeSuite(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))

	require.NoError(t, s.AddFile(ctx, FileNode{Path: "Foo.java", Language: decl.LangJava, DeclCount: 3}))
	for _, d := range []DeclNode{
		{FilePath: "Foo.java", TypeName: "Foo", Kind: DeclKindType, Name: "Foo"},
		{FilePath: "Foo.java", TypeName: "Foo", Kind: DeclKindMethod, Name: "bar", Signature: "bar()", Provenance: decl.Manual},
		{FilePath: "Foo.java", TypeName: "Foo", Kind: DeclKindMethod, Name: "baz", Signature: "baz(String)", Provenance: decl.Generated},
	} {
		require.NoError(t, s.AddDecl(ctx, d))
	}

	got, err := s.GetFile(ctx, "Foo.java")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, FileNode{Path: "Foo.java", Language: decl.LangJava, DeclCount: 3}, *got)

	missing, err := s.GetFile(ctx, "Nope.java")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.QueryDecls(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo.java:Foo", "Foo.java:Foo.bar()", "Foo.java:Foo.baz(String)"}, ids(all))

	manual, err := s.QueryDecls(ctx, Query{Provenance: prov(decl.Manual)})
	require.NoError(t, err)
	require.Len(t, manual, 1)
	assert.Equal(t, "bar", manual[0].Name)
	assert.Equal(t, decl.Manual, manual[0].Provenance)

	byName, err := s.QueryDecls(ctx, Query{Name: "BA", Kind: DeclKindMethod, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo.java:Foo.bar()"}, ids(byName))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{FileCount: 1, DeclCount: 3, Generated: 1, Manual: 1, Unmarked: 1}, *st)

	require.NoError(t, s.RemoveFile(ctx, "Foo.java"))
	require.NoError(t, s.RemoveFile(ctx, "Foo.java"), "removing twice is fine")
	all, err = s.QueryDecls(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	got, err = s.GetFile(ctx, "Foo.java")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ---------------------------------------------------------------------------
// MemStore
// ---------------------------------------------------------------------------

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	storeSuite(t, s)
}

func TestDeclNode_ID(t *testing.T) {
	assert.Equal(t, "a.go:Foo", DeclNode{FilePath: "a.go", TypeName: "Foo", Kind: DeclKindType, Name: "Foo"}.ID())
	assert.Equal(t, "a.go:Foo.x", DeclNode{FilePath: "a.go", TypeName: "Foo", Kind: DeclKindField, Name: "x"}.ID())
	assert.Equal(t, "a.go:Foo.M(int)", DeclNode{FilePath: "a.go", TypeName: "Foo", Kind: DeclKindMethod, Name: "M", Signature: "M(int)"}.ID())
}

// ---------------------------------------------------------------------------
// Indexer
// ---------------------------------------------------------------------------

func TestIndexer_Declarations(t *testing.T) {
	ix := newIndexer(t, NewMemStore())
	a := source.NewTreeSitterAdapter()
	defer a.Close()
	u, err := a.Parse(context.Background(), []byte(fooJava), decl.LangJava)
	require.NoError(t, err)

	decls := ix.Declarations("Foo.java", u)
	got := make(map[string]decl.Provenance)
	for _, d := range decls {
		got[d.ID()] = d.Provenance
	}
	assert.Equal(t, map[string]decl.Provenance{
		"Foo.java:Foo":             decl.Unmarked,
		"Foo.java:Foo.a":           decl.Unmarked,
		"Foo.java:Foo.bar()":       decl.Manual,
		"Foo.java:Foo.baz(String)": decl.Generated,
		"Foo.java:Foo.plain()":     decl.Unmarked,
	}, got)
}

func TestIndexer_RecordReplaces(t *testing.T) {
	store := NewMemStore()
	ix := newIndexer(t, store)
	ctx := context.Background()

	u := &decl.Unit{Language: decl.LangJava, Types: []decl.Type{{
		Name:    "Foo",
		Methods: []decl.Method{{Name: "a", Comment: []string{"// Generated"}}},
	}}}
	require.NoError(t, ix.Record(ctx, "Foo.java", u))

	u2 := &decl.Unit{Language: decl.LangJava, Types: []decl.Type{{
		Name:    "Foo",
		Methods: []decl.Method{{Name: "b", Comment: []string{"// Manual"}}},
	}}}
	require.NoError(t, ix.Record(ctx, "Foo.java", u2))

	all, err := store.QueryDecls(ctx, Query{Kind: DeclKindMethod})
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo.java:Foo.b()"}, ids(all))

	assert.Error(t, ix.Record(ctx, "Bar.java", nil))
}

func TestIndexer_IndexDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("com/Foo.java", fooJava)
	write("com/Broken.java", "public class Broken {\n    int = ;\n")
	write("README.md", "# readme\n")
	write("skip/Skip.java", fooJava)
	write(".backups/Foo_20260101_000000.java.bak", fooJava)

	store := NewMemStore()
	ix := newIndexer(t, store)
	ctx := context.Background()

	res, err := ix.IndexDir(ctx, dir, nil, []string{"skip/**"})
	require.Error(t, err, "broken file is reported")
	assert.Contains(t, err.Error(), "com/Broken.java")
	assert.Equal(t, &DirResult{Files: 1, Decls: 5, Skipped: 1, Failed: 1}, res)

	manual, err := store.QueryDecls(ctx, Query{Provenance: prov(decl.Manual)})
	require.NoError(t, err)
	require.Len(t, manual, 1)
	assert.Equal(t, filepath.Join(dir, "com", "Foo.java"), manual[0].FilePath)
}
