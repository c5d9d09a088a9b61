package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/regenmerge/internal/config"
	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/merge"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// Recorder receives every successfully merged unit of a non-dry run. The
// provenance index implements it.
type Recorder interface {
	Record(ctx context.Context, path string, unit *decl.Unit) error
}

// Options controls a batch run.
type Options struct {
	// Concurrency bounds parallel units; zero means runtime.NumCPU().
	Concurrency int
	// DryRun computes every merge but writes nothing.
	DryRun bool
	// Backup copies an existing target aside before overwriting it.
	Backup    bool
	BackupDir string
	// Unsupported decides what happens to files no adapter handles.
	Unsupported config.UnsupportedPolicy
}

// Runner merges units in parallel. One unit's failure never stops the
// others.
type Runner struct {
	merger     *merge.Merger
	opts       Options
	logger     *zap.Logger
	recorder   Recorder
	onProgress func(ProgressEvent)
	now        func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder hands every merged unit to rec.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithProgress registers a progress callback. It is called from worker
// goroutines and must be safe for concurrent use.
func WithProgress(fn func(ProgressEvent)) RunnerOption {
	return func(r *Runner) { r.onProgress = fn }
}

// WithClock overrides the clock used for backup names and report times.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(merger *merge.Merger, opts Options, ropts ...RunnerOption) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.BackupDir == "" {
		opts.BackupDir = config.DefaultBackupDir
	}
	if opts.Unsupported == "" {
		opts.Unsupported = config.UnsupportedSkip
	}
	r := &Runner{
		merger: merger,
		opts:   opts,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Run processes every unit and returns a report in input order. The error
// aggregates unit failures; the report is returned regardless.
func (r *Runner) Run(ctx context.Context, units []Unit) (*Report, error) {
	report := &Report{
		StartedAt: r.now(),
		DryRun:    r.opts.DryRun,
		Units:     make([]UnitResult, len(units)),
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Concurrency)
	for i, u := range units {
		r.emit(ProgressEvent{Unit: u.Rel, Status: ProgressPending})
		g.Go(func() error {
			res := r.runUnit(ctx, u)
			report.Units[i] = res
			if res.Err != nil {
				r.logger.Warn("unit failed", zap.String("unit", u.Rel), zap.Error(res.Err))
				r.emit(ProgressEvent{Unit: u.Rel, Status: ProgressFailed, Message: res.Err.Error()})
				return nil
			}
			r.logger.Debug("unit done", zap.String("unit", u.Rel), zap.String("status", string(res.Status)))
			r.emit(ProgressEvent{Unit: u.Rel, Status: ProgressComplete, Message: string(res.Status)})
			return nil
		})
	}
	_ = g.Wait()
	report.FinishedAt = r.now()

	var result *multierror.Error
	for _, u := range report.Units {
		if u.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", u.Rel, u.Err))
		}
	}
	return report, result.ErrorOrNil()
}

func (r *Runner) runUnit(ctx context.Context, u Unit) UnitResult {
	res := UnitResult{Unit: u}
	fail := func(err error) UnitResult {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	r.emit(ProgressEvent{Unit: u.Rel, Status: ProgressWorking})

	generated, err := os.ReadFile(u.Generated)
	if err != nil {
		return fail(&merge.IOError{Op: "read", Path: u.Generated, Err: err})
	}
	existing, err := os.ReadFile(u.Target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existing = nil
	case err != nil:
		return fail(&merge.IOError{Op: "read", Path: u.Target, Err: err})
	}

	lang, ok := source.LanguageForPath(u.Target)
	if !ok {
		return r.unsupported(res, generated, existing)
	}

	mr, err := r.merger.MergeSource(ctx, lang, generated, existing)
	if err != nil {
		return fail(err)
	}
	res.Changes = &mr.Changes

	switch {
	case mr.IsNewFile:
		res.Status = StatusCreated
	case !mr.Changes.NeedsWrite(), bytes.Equal(mr.MergedSource, existing):
		// Nothing was added or replaced: the target keeps its own formatting.
		res.Status = StatusUnchanged
	case mr.HasChanges():
		res.Status = StatusMerged
	default:
		res.Status = StatusRegenerated
	}

	if res.Status != StatusUnchanged {
		if err := r.write(&res, mr.MergedSource, existing); err != nil {
			return fail(err)
		}
	}
	if !r.opts.DryRun && r.recorder != nil {
		if err := r.recorder.Record(ctx, u.Target, mr.Merged); err != nil {
			r.logger.Warn("record unit", zap.String("unit", u.Rel), zap.Error(err))
		}
	}
	return res
}

func (r *Runner) unsupported(res UnitResult, generated, existing []byte) UnitResult {
	switch r.opts.Unsupported {
	case config.UnsupportedOverwrite:
		switch {
		case existing == nil:
			res.Status = StatusCreated
		case bytes.Equal(generated, existing):
			res.Status = StatusUnchanged
			return res
		default:
			res.Status = StatusRegenerated
		}
		if err := r.write(&res, generated, existing); err != nil {
			res.Status = StatusFailed
			res.Err = err
		}
		return res
	case config.UnsupportedError:
		res.Status = StatusFailed
		res.Err = fmt.Errorf("%w: %s", source.ErrUnsupportedLanguage, res.Target)
		return res
	default:
		res.Status = StatusSkipped
		return res
	}
}

// write backs up the current target when requested and replaces it.
func (r *Runner) write(res *UnitResult, data, existing []byte) error {
	if r.opts.DryRun {
		return nil
	}
	if existing != nil && r.opts.Backup {
		path, err := backup(res.Target, existing, r.opts.BackupDir, r.now())
		if err != nil {
			return err
		}
		res.Backup = path
	}
	if err := writeAtomic(res.Target, data, targetMode(res.Target)); err != nil {
		return &merge.IOError{Op: "write", Path: res.Target, Err: err}
	}
	res.Written = true
	return nil
}

func (r *Runner) emit(ev ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(ev)
	}
}
