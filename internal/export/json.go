package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/dusk-indust/regenmerge/internal/batch"
)

// RunExport is the top-level JSON export of a batch run.
type RunExport struct {
	ExportedAt string       `json:"exportedAt"`
	StartedAt  string       `json:"startedAt"`
	DurationMS int64        `json:"durationMs"`
	DryRun     bool         `json:"dryRun"`
	Summary    Summary      `json:"summary"`
	Units      []UnitExport `json:"units"`
}

// Summary counts units per status.
type Summary struct {
	Total       int `json:"total"`
	Created     int `json:"created"`
	Merged      int `json:"merged"`
	Regenerated int `json:"regenerated"`
	Unchanged   int `json:"unchanged"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Written     int `json:"written"`
}

// UnitExport describes one processed file.
type UnitExport struct {
	Path             string   `json:"path"`
	Target           string   `json:"target"`
	Status           string   `json:"status"`
	NewFields        []string `json:"newFields,omitempty"`
	NewMethods       []string `json:"newMethods,omitempty"`
	ReplacedMethods  []string `json:"replacedMethods,omitempty"`
	PreservedMethods []string `json:"preservedMethods,omitempty"`
	NewImports       []string `json:"newImports,omitempty"`
	Backup           string   `json:"backup,omitempty"`
	Written          bool     `json:"written"`
	Error            string   `json:"error,omitempty"`
}

// ExportReport builds a RunExport from a batch report.
func ExportReport(report *batch.Report, now time.Time) *RunExport {
	exp := &RunExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		StartedAt:  report.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		DryRun:     report.DryRun,
		Summary:    Summarize(report),
	}
	exp.Units = lo.Map(report.Units, func(u batch.UnitResult, _ int) UnitExport {
		ue := UnitExport{
			Path:    u.Rel,
			Target:  u.Target,
			Status:  string(u.Status),
			Backup:  u.Backup,
			Written: u.Written,
		}
		if c := u.Changes; c != nil {
			ue.NewFields = c.NewFieldNames
			ue.NewMethods = c.NewMethodSignatures
			ue.ReplacedMethods = c.ReplacedMethodSignatures
			ue.PreservedMethods = c.PreservedMethodSignatures
			ue.NewImports = c.NewImports
		}
		if u.Err != nil {
			ue.Error = u.Err.Error()
		}
		return ue
	})
	return exp
}

// Summarize counts the units of report per status.
func Summarize(report *batch.Report) Summary {
	return Summary{
		Total:       len(report.Units),
		Created:     report.Count(batch.StatusCreated),
		Merged:      report.Count(batch.StatusMerged),
		Regenerated: report.Count(batch.StatusRegenerated),
		Unchanged:   report.Count(batch.StatusUnchanged),
		Skipped:     report.Count(batch.StatusSkipped),
		Failed:      report.Count(batch.StatusFailed),
		Written:     report.Written(),
	}
}

// WriteJSON encodes exp as indented JSON.
func WriteJSON(w io.Writer, exp *RunExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exp)
}

// WriteFile writes exp as JSON to path, creating parent directories.
func WriteFile(path string, exp *RunExport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := WriteJSON(f, exp); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
