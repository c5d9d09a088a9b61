package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/regenmerge/internal/config"
	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/merge"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newMerger(t *testing.T) *merge.Merger {
	t.Helper()
	a := source.NewTreeSitterAdapter()
	t.Cleanup(func() { _ = a.Close() })
	return merge.NewMerger(a)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// tree lays out a generated dir and a target dir.
type tree struct {
	gen, target string
}

func newTree(t *testing.T) tree {
	root := t.TempDir()
	return tree{gen: filepath.Join(root, "gen"), target: filepath.Join(root, "src")}
}

func (tr tree) unit(rel string) Unit {
	return Unit{
		Rel:       rel,
		Generated: filepath.Join(tr.gen, filepath.FromSlash(rel)),
		Target:    filepath.Join(tr.target, filepath.FromSlash(rel)),
	}
}

const genFoo = `public class Foo {
    // Generated
    public int bar() {
        return 0;
    }

    // Generated
    public void baz() {
    }
}
`

const exFoo = `public class Foo {
    // Manual
    public int bar() {
        return 1;
    }
}
`

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) Record(_ context.Context, path string, u *decl.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u == nil {
		return errors.New("nil unit")
	}
	r.paths = append(r.paths, path)
	return nil
}

// ---------------------------------------------------------------------------
// TestRunner_Run
// ---------------------------------------------------------------------------

func TestRunner_StatusesAndContinuation(t *testing.T) {
	tr := newTree(t)

	// created
	write(t, tr.unit("a/New.java").Generated, genFoo)
	// merged
	write(t, tr.unit("Foo.java").Generated, genFoo)
	write(t, tr.unit("Foo.java").Target, exFoo)
	// unchanged
	write(t, tr.unit("Same.java").Generated, exFoo)
	write(t, tr.unit("Same.java").Target, exFoo)
	// failed: malformed generated source
	write(t, tr.unit("Broken.java").Generated, "public class Broken {\n    int = ;\n")
	write(t, tr.unit("Broken.java").Target, exFoo)
	// skipped
	write(t, tr.unit("notes.txt").Generated, "hello\n")

	units, err := Discover(tr.gen, tr.target, nil, nil, config.DefaultBackupDir)
	require.NoError(t, err)
	require.Len(t, units, 5)

	rec := &recorder{}
	runner := NewRunner(newMerger(t), Options{Concurrency: 2, Backup: true},
		WithClock(func() time.Time { return fixedNow }),
		WithRecorder(rec))

	report, err := runner.Run(context.Background(), units)
	require.Error(t, err)
	var pe *merge.ParseError
	assert.True(t, errors.As(err, &pe), "aggregate wraps the unit error")

	byRel := make(map[string]UnitResult)
	for _, u := range report.Units {
		byRel[u.Rel] = u
	}
	assert.Equal(t, StatusCreated, byRel["a/New.java"].Status)
	assert.Equal(t, StatusMerged, byRel["Foo.java"].Status)
	assert.Equal(t, StatusUnchanged, byRel["Same.java"].Status)
	assert.Equal(t, StatusFailed, byRel["Broken.java"].Status)
	assert.Equal(t, StatusSkipped, byRel["notes.txt"].Status)

	assert.Equal(t, genFoo, read(t, tr.unit("a/New.java").Target))
	assert.Contains(t, read(t, tr.unit("Foo.java").Target), "return 1;")
	assert.Contains(t, read(t, tr.unit("Foo.java").Target), "public void baz()")
	assert.Equal(t, exFoo, read(t, tr.unit("Broken.java").Target), "failed unit leaves target untouched")
	assert.NoFileExists(t, tr.unit("notes.txt").Target)

	foo := byRel["Foo.java"]
	require.NotNil(t, foo.Changes)
	assert.Equal(t, []string{"baz()"}, foo.Changes.NewMethodSignatures)
	assert.True(t, foo.Written)
	wantBackup := filepath.Join(tr.target, ".backups", "Foo_20260314_150926.java.bak")
	assert.Equal(t, wantBackup, foo.Backup)
	assert.Equal(t, exFoo, read(t, wantBackup))

	assert.False(t, byRel["Same.java"].Written)
	assert.Empty(t, byRel["Same.java"].Backup)

	assert.Equal(t, 1, report.Count(StatusCreated))
	assert.Len(t, report.Failed(), 1)
	assert.Equal(t, 2, report.Written())

	sort.Strings(rec.paths)
	assert.Equal(t, []string{
		tr.unit("Foo.java").Target,
		tr.unit("Same.java").Target,
		tr.unit("a/New.java").Target,
	}, rec.paths)
}

func TestRunner_Regenerated(t *testing.T) {
	tr := newTree(t)
	u := tr.unit("Foo.java")
	write(t, u.Target, "public class Foo {\n    // Generated\n    public int bar() {\n        return 1;\n    }\n}\n")
	write(t, u.Generated, "public class Foo {\n    // Generated\n    public int bar() {\n        return 2;\n    }\n}\n")

	report, err := NewRunner(newMerger(t), Options{}).Run(context.Background(), []Unit{u})
	require.NoError(t, err)
	assert.Equal(t, StatusRegenerated, report.Units[0].Status)
	assert.Contains(t, read(t, u.Target), "return 2;")
	assert.Empty(t, report.Units[0].Backup, "no backup unless Options.Backup is set")
}

func TestRunner_NoChangesKeepsTargetFormatting(t *testing.T) {
	tr := newTree(t)
	u := tr.unit("Foo.java")
	existing := "public class Foo {\n\tprivate int a;\n\t// Manual\n\tpublic int bar() { return 1; }\n}\n"
	write(t, u.Target, existing)
	write(t, u.Generated, "public class Foo {\n    private int a;\n\n    // Generated\n    public int bar() {\n        return 0;\n    }\n}\n")

	report, err := NewRunner(newMerger(t), Options{Backup: true}).Run(context.Background(), []Unit{u})
	require.NoError(t, err)

	res := report.Units[0]
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.False(t, res.Written)
	assert.Empty(t, res.Backup)
	require.NotNil(t, res.Changes)
	assert.False(t, res.Changes.NeedsWrite())
	assert.Equal(t, []string{"bar()"}, res.Changes.PreservedMethodSignatures)
	assert.Equal(t, existing, read(t, u.Target))
	assert.NoDirExists(t, filepath.Join(tr.target, ".backups"))
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	tr := newTree(t)
	u := tr.unit("Foo.java")
	write(t, u.Generated, genFoo)
	write(t, u.Target, exFoo)
	created := tr.unit("New.java")
	write(t, created.Generated, genFoo)

	rec := &recorder{}
	report, err := NewRunner(newMerger(t), Options{DryRun: true, Backup: true}, WithRecorder(rec)).
		Run(context.Background(), []Unit{u, created})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, StatusMerged, report.Units[0].Status)
	assert.Equal(t, StatusCreated, report.Units[1].Status)
	assert.Equal(t, exFoo, read(t, u.Target))
	assert.NoFileExists(t, created.Target)
	assert.NoDirExists(t, filepath.Join(tr.target, ".backups"))
	assert.Zero(t, report.Written())
	assert.Empty(t, rec.paths)
}

func TestRunner_UnsupportedPolicies(t *testing.T) {
	tests := []struct {
		policy     config.UnsupportedPolicy
		wantStatus Status
		wantTarget string
		wantErr    bool
	}{
		{config.UnsupportedSkip, StatusSkipped, "old\n", false},
		{config.UnsupportedOverwrite, StatusRegenerated, "new\n", false},
		{config.UnsupportedError, StatusFailed, "old\n", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			tr := newTree(t)
			u := tr.unit("README.md")
			write(t, u.Generated, "new\n")
			write(t, u.Target, "old\n")

			report, err := NewRunner(newMerger(t), Options{Unsupported: tt.policy}).Run(context.Background(), []Unit{u})
			if tt.wantErr {
				assert.ErrorIs(t, err, source.ErrUnsupportedLanguage)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, report.Units[0].Status)
			assert.Equal(t, tt.wantTarget, read(t, u.Target))
		})
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	tr := newTree(t)
	u := tr.unit("Foo.java")
	write(t, u.Generated, genFoo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(newMerger(t), Options{}).Run(ctx, []Unit{u})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, report.Units[0].Status)
	assert.NoFileExists(t, u.Target)
}

func TestRunner_ProgressEvents(t *testing.T) {
	tr := newTree(t)
	ok := tr.unit("Foo.java")
	write(t, ok.Generated, genFoo)
	bad := tr.unit("Bad.java")
	write(t, bad.Generated, "class {")

	var mu sync.Mutex
	seen := make(map[string][]ProgressStatus)
	_, _ = NewRunner(newMerger(t), Options{Concurrency: 1}, WithProgress(func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.Unit] = append(seen[ev.Unit], ev.Status)
	})).Run(context.Background(), []Unit{ok, bad})

	assert.Equal(t, []ProgressStatus{ProgressPending, ProgressWorking, ProgressComplete}, seen["Foo.java"])
	assert.Equal(t, []ProgressStatus{ProgressPending, ProgressWorking, ProgressFailed}, seen["Bad.java"])
}

// ---------------------------------------------------------------------------
// Discover, backups and writes
// ---------------------------------------------------------------------------

func TestDiscover_IncludeExclude(t *testing.T) {
	tr := newTree(t)
	for _, rel := range []string{"Foo.java", "pkg/Bar.java", "pkg/internal/Baz.java", "pkg/x.go", ".backups/Old.java.bak"} {
		write(t, tr.unit(rel).Generated, "x")
	}

	units, err := Discover(tr.gen, tr.target, []string{"**/*.java"}, []string{"**/internal/**"}, ".backups")
	require.NoError(t, err)

	rels := make([]string, 0, len(units))
	for _, u := range units {
		rels = append(rels, u.Rel)
	}
	assert.Equal(t, []string{"Foo.java", "pkg/Bar.java"}, rels)
	assert.Equal(t, filepath.Join(tr.target, "pkg", "Bar.java"), units[1].Target)
}

func TestDiscover_InvalidPattern(t *testing.T) {
	_, err := Discover(t.TempDir(), t.TempDir(), []string{"[unclosed"}, nil, ".backups")
	assert.Error(t, err)
}

func TestBackupPath(t *testing.T) {
	got := BackupPath(filepath.Join("src", "com", "Foo.java"), ".backups", fixedNow)
	assert.Equal(t, filepath.Join("src", "com", ".backups", "Foo_20260314_150926.java.bak"), got)

	got = BackupPath("Makefile", "bak", fixedNow)
	assert.Equal(t, filepath.Join("bak", "Makefile_20260314_150926.bak"), got)
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.txt")

	require.NoError(t, writeAtomic(path, []byte("one"), 0o600))
	require.NoError(t, writeAtomic(path, []byte("two"), 0o600))
	assert.Equal(t, "two", read(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{Unit: "Foo.java", Status: ProgressWorking})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}
	assert.Len(t, pr.Subscribe(), 64)
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		ev   ProgressEvent
		want string
	}{
		{ProgressEvent{Unit: "Foo.java", Status: ProgressPending}, "  ○ Foo.java (pending)"},
		{ProgressEvent{Unit: "Foo.java", Status: ProgressWorking}, "  ● Foo.java..."},
		{ProgressEvent{Unit: "Foo.java", Status: ProgressComplete}, "  ✓ Foo.java complete"},
		{ProgressEvent{Unit: "Foo.java", Status: ProgressComplete, Message: "merged"}, "  ✓ Foo.java merged"},
		{ProgressEvent{Unit: "Foo.java", Status: ProgressFailed, Message: "boom"}, "  ✗ Foo.java failed: boom"},
		{ProgressEvent{Unit: "Foo.java", Status: "weird"}, "  ? Foo.java (unknown status)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatProgress(tt.ev))
	}
}
