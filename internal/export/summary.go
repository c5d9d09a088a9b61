package export

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/dusk-indust/regenmerge/internal/batch"
	"github.com/dusk-indust/regenmerge/internal/merge"
)

var statusSymbols = map[batch.Status]string{
	batch.StatusCreated:     "+",
	batch.StatusMerged:      "~",
	batch.StatusRegenerated: "↻",
	batch.StatusUnchanged:   "=",
	batch.StatusSkipped:     "-",
	batch.StatusFailed:      "✗",
}

// FormatSummary renders a batch report for humans: a totals line followed
// by one line per unit that was not left unchanged.
func FormatSummary(report *batch.Report) string {
	s := Summarize(report)
	var b strings.Builder
	prefix := ""
	if report.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(&b, "%s%d files: %d created, %d merged, %d regenerated, %d unchanged, %d skipped, %d failed\n",
		prefix, s.Total, s.Created, s.Merged, s.Regenerated, s.Unchanged, s.Skipped, s.Failed)

	visible := lo.Filter(report.Units, func(u batch.UnitResult, _ int) bool {
		return u.Status != batch.StatusUnchanged
	})
	for _, u := range visible {
		fmt.Fprintf(&b, "  %s %s", statusSymbols[u.Status], u.Rel)
		switch {
		case u.Err != nil:
			fmt.Fprintf(&b, ": %v", u.Err)
		case u.Changes != nil && u.Status != batch.StatusCreated:
			if d := FormatChanges(*u.Changes); d != "" {
				b.WriteString(": " + d)
			}
		default:
			fmt.Fprintf(&b, " (%s)", u.Status)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatChanges describes a change analysis in one line, for example
// "+1 field (b), +1 method (baz()), 1 regenerated".
func FormatChanges(c merge.ChangeAnalysis) string {
	var parts []string
	if n := len(c.NewFieldNames); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s (%s)", n, plural(n, "field"), strings.Join(c.NewFieldNames, ", ")))
	}
	if n := len(c.NewMethodSignatures); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s (%s)", n, plural(n, "method"), strings.Join(c.NewMethodSignatures, ", ")))
	}
	if n := len(c.ReplacedMethodSignatures); n > 0 {
		parts = append(parts, fmt.Sprintf("%d regenerated", n))
	}
	if n := len(c.PreservedMethodSignatures); n > 0 {
		parts = append(parts, fmt.Sprintf("%d preserved", n))
	}
	if n := len(c.NewImports); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s", n, plural(n, "import")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
