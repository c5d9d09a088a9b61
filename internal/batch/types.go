// Package batch merges many generated files into a target tree in
// parallel, writing results atomically and keeping timestamped backups.
package batch

import (
	"time"

	"github.com/samber/lo"

	"github.com/dusk-indust/regenmerge/internal/merge"
)

// Status is the outcome of one unit.
type Status string

const (
	// StatusCreated means the target did not exist and was written.
	StatusCreated Status = "created"
	// StatusMerged means fields or methods were added to the target.
	StatusMerged Status = "merged"
	// StatusRegenerated means the target changed without additions, for
	// example generated methods were overwritten or imports were added.
	StatusRegenerated Status = "regenerated"
	// StatusUnchanged means the merged output equals the target.
	StatusUnchanged Status = "unchanged"
	// StatusSkipped means the unit was not processed, for example an
	// unsupported language under the skip policy.
	StatusSkipped Status = "skipped"
	// StatusFailed means the unit errored; the target is untouched.
	StatusFailed Status = "failed"
)

// Unit pairs a generated file with the target it merges into.
type Unit struct {
	// Rel is the slash-separated path relative to the generated root.
	Rel       string `json:"rel"`
	Generated string `json:"generated"`
	Target    string `json:"target"`
}

// UnitResult is the outcome of processing one Unit.
type UnitResult struct {
	Unit
	Status  Status                `json:"status"`
	Changes *merge.ChangeAnalysis `json:"changes,omitempty"`
	// Backup is the path of the backup taken before overwriting, if any.
	Backup string `json:"backup,omitempty"`
	// Written is false for dry runs and unchanged units.
	Written bool  `json:"written"`
	Err     error `json:"-"`
}

// Report collects the results of a batch run in input order.
type Report struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	DryRun     bool         `json:"dryRun"`
	Units      []UnitResult `json:"units"`
}

// Count returns the number of units with status s.
func (r *Report) Count(s Status) int {
	return len(lo.Filter(r.Units, func(u UnitResult, _ int) bool {
		return u.Status == s
	}))
}

// Failed returns the failed units.
func (r *Report) Failed() []UnitResult {
	return lo.Filter(r.Units, func(u UnitResult, _ int) bool {
		return u.Status == StatusFailed
	})
}

// Written returns the number of targets written.
func (r *Report) Written() int {
	return lo.SumBy(r.Units, func(u UnitResult) int {
		if u.Written {
			return 1
		}
		return 0
	})
}
