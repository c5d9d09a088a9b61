package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/config"
	"github.com/dusk-indust/regenmerge/internal/merge"
	"github.com/dusk-indust/regenmerge/internal/provenance"
	"github.com/dusk-indust/regenmerge/internal/source"
)

// version is set by goreleaser at build time.
var version = "dev"

// defaultIndexPath is used when the project config sets no indexPath.
const defaultIndexPath = ".regenmerge/index"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

// app carries the state shared by every subcommand. It is populated by the
// root command's PersistentPreRunE.
type app struct {
	projectRoot string
	verbose     bool

	cfg    *config.ProjectConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "regenmerge",
		Short: "Merge regenerated source into hand-edited files",
		Long: `regenmerge folds freshly generated source files into existing ones.

Declarations marked with a Manual comment and unmarked declarations are kept
verbatim. Declarations marked Generated are replaced by their regenerated
version, and anything new is added. Nothing is ever deleted.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup() },
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.projectRoot, "project-root", ".", "project root holding .regenmerge.yml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newMergeCmd(a),
		newBatchCmd(a),
		newIndexCmd(a),
		newQueryCmd(a),
		newServeMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.projectRoot)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	if cfg.Verbose {
		a.verbose = true
	}
	a.logger, err = newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	return nil
}

// newLogger builds a development logger when verbose and a warn-level
// production logger otherwise. Both write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// newMerger creates a merger configured with the project markers. The
// caller closes the returned adapter.
func (a *app) newMerger() (*merge.Merger, source.Adapter) {
	adapter := source.NewTreeSitterAdapter()
	m := merge.NewMerger(adapter,
		merge.WithLogger(a.logger),
		merge.WithMarkers(a.cfg.Markers),
	)
	return m, adapter
}

func (a *app) classifier() *provenance.Classifier {
	return provenance.NewClassifier(a.cfg.Markers)
}

// indexPath resolves the index location against the project root.
func (a *app) indexPath() string {
	p := a.cfg.IndexPath
	if p == "" {
		p = defaultIndexPath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.projectRoot, p)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Overrides the root hook: printing the version needs no config.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
