package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/batch"
	"github.com/dusk-indust/regenmerge/internal/config"
	"github.com/dusk-indust/regenmerge/internal/export"
	"github.com/dusk-indust/regenmerge/internal/index"
)

type batchFlags struct {
	DryRun  bool
	Backup  bool
	Jobs    int
	Include []string
	Exclude []string
	Report  string
	Index   bool
}

func newBatchCmd(a *app) *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "batch <generated-dir> <target-dir>",
		Short: "Merge every generated file into the matching target file",
		Long: `Merge every generated file into the matching target file.

Each file under <generated-dir> is paired with the file at the same relative
path under <target-dir>. Missing targets are created. A failing file is
reported and the remaining files are still processed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.applyConfig(cmd, a.cfg)
			return runBatch(cmd, a, args[0], args[1], flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.DryRun, "dry-run", "n", false, "compute merges without writing anything")
	cmd.Flags().BoolVar(&flags.Backup, "backup", true, "back up targets before overwriting them")
	cmd.Flags().IntVarP(&flags.Jobs, "jobs", "j", 0, "files merged in parallel (default: config concurrency)")
	cmd.Flags().StringSliceVar(&flags.Include, "include", nil, "doublestar globs selecting generated files")
	cmd.Flags().StringSliceVar(&flags.Exclude, "exclude", nil, "doublestar globs dropping generated files")
	cmd.Flags().StringVar(&flags.Report, "report", "", "write a JSON run report to this path")
	cmd.Flags().BoolVar(&flags.Index, "index", false, "record merged declarations in the provenance index")
	return cmd
}

// applyConfig fills flags the user did not set from the project config.
func (f *batchFlags) applyConfig(cmd *cobra.Command, cfg *config.ProjectConfig) {
	if !cmd.Flags().Changed("backup") {
		f.Backup = cfg.Backup
	}
	if !cmd.Flags().Changed("jobs") {
		f.Jobs = cfg.Concurrency
	}
	if !cmd.Flags().Changed("include") {
		f.Include = cfg.Include
	}
	if !cmd.Flags().Changed("exclude") {
		f.Exclude = cfg.Exclude
	}
}

func runBatch(cmd *cobra.Command, a *app, generatedDir, targetDir string, flags batchFlags) error {
	ctx := cmd.Context()
	units, err := batch.Discover(generatedDir, targetDir, flags.Include, flags.Exclude, a.cfg.BackupDir)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	a.logger.Info("batch starting",
		zap.String("generated", generatedDir),
		zap.String("target", targetDir),
		zap.Int("units", len(units)),
		zap.Bool("dry_run", flags.DryRun))

	merger, adapter := a.newMerger()
	defer adapter.Close()

	ropts := []batch.RunnerOption{batch.WithLogger(a.logger)}

	if flags.Index && !flags.DryRun {
		store, err := openStore(ctx, a.indexPath(), a.logger)
		if err != nil {
			return err
		}
		defer store.Close()
		ropts = append(ropts, batch.WithRecorder(index.NewIndexer(store, adapter, a.classifier(), a.logger)))
	}

	if a.verbose {
		reporter := batch.NewProgressReporter()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range reporter.Subscribe() {
				fmt.Fprintln(cmd.ErrOrStderr(), batch.FormatProgress(ev))
			}
		}()
		defer func() {
			reporter.Close()
			<-done
		}()
		ropts = append(ropts, batch.WithProgress(reporter.Emit))
	}

	runner := batch.NewRunner(merger, batch.Options{
		Concurrency: flags.Jobs,
		DryRun:      flags.DryRun,
		Backup:      flags.Backup,
		BackupDir:   a.cfg.BackupDir,
		Unsupported: a.cfg.Unsupported,
	}, ropts...)

	report, runErr := runner.Run(ctx, units)
	fmt.Fprint(cmd.OutOrStdout(), export.FormatSummary(report))

	if flags.Report != "" {
		if err := export.WriteFile(flags.Report, export.ExportReport(report, time.Now())); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("%d of %d files failed: %w", len(report.Failed()), len(report.Units), runErr)
	}
	return nil
}
