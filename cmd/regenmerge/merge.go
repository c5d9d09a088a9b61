package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/regenmerge/internal/batch"
	"github.com/dusk-indust/regenmerge/internal/export"
	"github.com/dusk-indust/regenmerge/internal/merge"
)

type mergeFlags struct {
	Write  bool
	Backup bool
	JSON   bool
}

// mergeOutput is the --json form of a merge without --write.
type mergeOutput struct {
	Path         string               `json:"path"`
	IsNewFile    bool                 `json:"isNewFile"`
	HasChanges   bool                 `json:"hasChanges"`
	Changes      merge.ChangeAnalysis `json:"changes"`
	MergedSource string               `json:"mergedSource"`
}

func newMergeCmd(a *app) *cobra.Command {
	var flags mergeFlags
	cmd := &cobra.Command{
		Use:   "merge <generated> <existing>",
		Short: "Merge one generated file into an existing file",
		Long: `Merge one generated file into an existing file.

Without --write the merged source is printed to stdout and nothing is
written. With --write the existing file is replaced atomically after a
timestamped backup; pass --backup=false to skip it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("backup") {
				flags.Backup = a.cfg.Backup
			}
			return runMerge(cmd, a, args[0], args[1], flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.Write, "write", "w", false, "write the merged result to <existing>")
	cmd.Flags().BoolVar(&flags.Backup, "backup", true, "back up <existing> before overwriting it (with --write)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print a machine-readable result")
	return cmd
}

func runMerge(cmd *cobra.Command, a *app, generatedPath, existingPath string, flags mergeFlags) error {
	merger, adapter := a.newMerger()
	defer adapter.Close()
	out := cmd.OutOrStdout()

	if flags.Write {
		runner := batch.NewRunner(merger, batch.Options{
			Concurrency: 1,
			Backup:      flags.Backup,
			BackupDir:   a.cfg.BackupDir,
			Unsupported: a.cfg.Unsupported,
		}, batch.WithLogger(a.logger))
		report, err := runner.Run(cmd.Context(), []batch.Unit{{
			Rel:       filepath.Base(existingPath),
			Generated: generatedPath,
			Target:    existingPath,
		}})
		if flags.JSON {
			if werr := export.WriteJSON(out, export.ExportReport(report, report.FinishedAt)); werr != nil {
				return werr
			}
		} else {
			fmt.Fprint(out, export.FormatSummary(report))
		}
		return err
	}

	generated, err := os.ReadFile(generatedPath)
	if err != nil {
		return &merge.IOError{Op: "read", Path: generatedPath, Err: err}
	}
	res, err := merger.MergeWithExisting(cmd.Context(), generated, existingPath)
	if err != nil {
		return err
	}

	if flags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(mergeOutput{
			Path:         existingPath,
			IsNewFile:    res.IsNewFile,
			HasChanges:   res.HasChanges(),
			Changes:      res.Changes,
			MergedSource: string(res.MergedSource),
		})
	}
	_, err = out.Write(res.MergedSource)
	if err == nil && a.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", existingPath, export.FormatChanges(res.Changes))
	}
	return err
}
