package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

const javaFoo = `package com.example;

import java.util.List;
import static org.junit.Assert.assertEquals;
import java.util.*;

@Entity
@Table(name = "foo")
public class Foo extends Base implements Serializable {
    private int a;
    private String b = "x", c;

    public Foo() {
    }

    // Manual
    public int bar() {
        return 1;
    }

    // Generated
    @Override
    public String find(Map<String, Integer> m, String... rest) {
        return null;
    }
}
`

func TestJavaExtractor_Structure(t *testing.T) {
	u := parseSource(t, decl.LangJava, javaFoo)

	assert.Equal(t, "package com.example;", u.Header)
	assert.Equal(t, []string{
		"java.util.List",
		"static org.junit.Assert.assertEquals",
		"java.util.*",
	}, importKeys(u))

	require.Len(t, u.Types, 1)
	foo := u.Primary()
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, "public class Foo extends Base implements Serializable", foo.Header)

	require.Len(t, foo.Annotations, 2)
	assert.Equal(t, "Entity", foo.Annotations[0].Name)
	assert.Equal(t, "Table", foo.Annotations[1].Name)
	assert.Equal(t, `@Table(name = "foo")`, foo.Annotations[1].Text)

	assert.Equal(t, []string{"a", "b", "c"}, foo.FieldNames())
	require.Len(t, foo.Fields, 2)
	assert.Equal(t, "private", foo.Fields[0].Modifiers)
	assert.Equal(t, "int", foo.Fields[0].Bindings[0].Type)
	assert.Equal(t, `"x"`, foo.Fields[1].Bindings[0].Value)

	require.Len(t, foo.Members, 1)
	assert.Contains(t, foo.Members[0], "public Foo()")

	assert.Equal(t, []string{"bar()", "find(Map<String,Integer>,String...)"}, signatures(foo))
	assert.Equal(t, []string{"// Manual"}, foo.Methods[0].Comment)
	assert.Equal(t, "public int bar() {\n    return 1;\n}", foo.Methods[0].Text)

	require.Len(t, foo.Methods[1].Annotations, 1)
	assert.Equal(t, "Override", foo.Methods[1].Annotations[0].Name)
}

func TestJavaPrinter_ExactRoundTrip(t *testing.T) {
	src := `package com.example;

import java.util.List;

@Entity
public class Foo {
    private int a;

    // Manual
    public int bar() {
        return 1;
    }
}
`
	assert.Equal(t, src, printUnit(t, parseSource(t, decl.LangJava, src)))
}

func TestJavaPrinter_Stable(t *testing.T) {
	out := assertStablePrint(t, decl.LangJava, javaFoo)
	assert.Contains(t, out, "import static org.junit.Assert.assertEquals;\n")
	assert.Contains(t, out, "@Table(name = \"foo\")\npublic class Foo extends Base implements Serializable {\n")
	assert.Contains(t, out, "    // Manual\n    public int bar() {\n        return 1;\n    }\n")
}

func TestJavaPrinter_SynthesizedField(t *testing.T) {
	u := parseSource(t, decl.LangJava, "public class Foo {\n    private String b = \"x\", c;\n}\n")
	f := &u.Types[0].Fields[0]
	f.Bindings = f.Bindings[1:]
	f.Text = ""

	assert.Equal(t, "public class Foo {\n    private String c;\n}\n", printUnit(t, u))
}

func TestJavaExtractor_SecondaryTypesAndChunks(t *testing.T) {
	src := `public class Foo {
}

enum Color {
    RED, GREEN
}

class Bar {
    int x;
}
`
	u := parseSource(t, decl.LangJava, src)
	require.Len(t, u.Types, 2)
	assert.Equal(t, "Foo", u.Types[0].Name)
	assert.Equal(t, "Bar", u.Types[1].Name)
	require.Len(t, u.Chunks, 1)
	assert.Equal(t, 0, u.Chunks[0].After)
	assert.Contains(t, u.Chunks[0].Text, "enum Color")

	assert.Equal(t, src, printUnit(t, u))
}

func TestJavaExtractor_Interface(t *testing.T) {
	src := `package com.example.repo;

@Repository
public interface FooRepository extends JpaRepository<Foo, Long> {
    int PAGE_SIZE = 50;

    // Manual
    List<Foo> findByName(String name);

    default int pageSize() {
        return PAGE_SIZE;
    }
}
`
	u := parseSource(t, decl.LangJava, src)
	require.Len(t, u.Types, 1)
	assert.Empty(t, u.Chunks)

	repo := u.Primary()
	assert.Equal(t, "FooRepository", repo.Name)
	assert.Equal(t, "public interface FooRepository extends JpaRepository<Foo, Long>", repo.Header)
	require.Len(t, repo.Annotations, 1)
	assert.Equal(t, "Repository", repo.Annotations[0].Name)

	assert.Equal(t, []string{"PAGE_SIZE"}, repo.FieldNames())
	assert.Equal(t, "int", repo.Fields[0].Bindings[0].Type)
	assert.Equal(t, []string{"findByName(String)", "pageSize()"}, signatures(repo))
	assert.Equal(t, "List<Foo> findByName(String name);", repo.Methods[0].Text)
	assert.Equal(t, []string{"// Manual"}, repo.Methods[0].Comment)

	assert.Equal(t, src, printUnit(t, u))
}

func TestJavaExtractor_Record(t *testing.T) {
	src := `public record Point(int x, int y) {
    static final Point ORIGIN = new Point(0, 0);

    public int sum() {
        return x + y;
    }
}
`
	u := parseSource(t, decl.LangJava, src)
	require.Len(t, u.Types, 1)
	p := u.Primary()
	assert.Equal(t, "Point", p.Name)
	assert.Equal(t, "public record Point(int x, int y)", p.Header)
	assert.Equal(t, []string{"ORIGIN"}, p.FieldNames())
	assert.Equal(t, []string{"sum()"}, signatures(p))
}
