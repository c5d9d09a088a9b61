package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/index"
	"github.com/dusk-indust/regenmerge/internal/source"
)

type indexFlags struct {
	Include []string
	Exclude []string
}

func newIndexCmd(a *app) *cobra.Command {
	var flags indexFlags
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Record the declarations under a directory and their provenance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("include") {
				flags.Include = a.cfg.Include
			}
			if !cmd.Flags().Changed("exclude") {
				flags.Exclude = a.cfg.Exclude
			}
			return runIndex(cmd, a, args[0], flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.Include, "include", nil, "doublestar globs selecting files")
	cmd.Flags().StringSliceVar(&flags.Exclude, "exclude", nil, "doublestar globs dropping files")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app, dir string, flags indexFlags) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, a.indexPath(), a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	adapter := source.NewTreeSitterAdapter()
	defer adapter.Close()
	ix := index.NewIndexer(store, adapter, a.classifier(), a.logger)

	res, indexErr := ix.IndexDir(ctx, dir, flags.Include, flags.Exclude)
	if res == nil {
		return indexErr
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading index stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d files (%d declarations), %d skipped, %d failed\n",
		res.Files, res.Decls, res.Skipped, res.Failed)
	fmt.Fprintf(out, "Index: %d files, %d declarations (%d generated, %d manual, %d unmarked)\n",
		stats.FileCount, stats.DeclCount, stats.Generated, stats.Manual, stats.Unmarked)
	return indexErr
}

type queryFlags struct {
	Name       string
	Kind       string
	Provenance string
	File       string
	Limit      int
	JSON       bool
}

func newQueryCmd(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search the provenance index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, a, flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "substring of the declaration name")
	cmd.Flags().StringVar(&flags.Kind, "kind", "", "type, field or method")
	cmd.Flags().StringVar(&flags.Provenance, "provenance", "", "generated, manual or unmarked")
	cmd.Flags().StringVar(&flags.File, "file", "", "restrict to one indexed file")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print results as JSON")
	return cmd
}

func (f queryFlags) query() (index.Query, error) {
	q := index.Query{
		Name:     f.Name,
		FilePath: f.File,
		Limit:    f.Limit,
	}
	switch kind := index.DeclKind(strings.ToLower(f.Kind)); kind {
	case "", index.DeclKindType, index.DeclKindField, index.DeclKindMethod:
		q.Kind = kind
	default:
		return q, fmt.Errorf("unknown kind %q (want type, field or method)", f.Kind)
	}
	if f.Provenance != "" {
		p, err := decl.ParseProvenance(strings.ToLower(f.Provenance))
		if err != nil {
			return q, err
		}
		q.Provenance = &p
	}
	return q, nil
}

func runQuery(cmd *cobra.Command, a *app, flags queryFlags) error {
	q, err := flags.query()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openStore(ctx, a.indexPath(), a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	decls, err := store.QueryDecls(ctx, q)
	if err != nil {
		return fmt.Errorf("querying index: %w", err)
	}

	out := cmd.OutOrStdout()
	if flags.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(decls)
	}
	if len(decls) == 0 {
		fmt.Fprintln(out, "No declarations found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVENANCE\tKIND\tDECLARATION\tFILE")
	for _, d := range decls {
		name := d.TypeName
		switch d.Kind {
		case index.DeclKindField:
			name += "." + d.Name
		case index.DeclKindMethod:
			name += "." + d.Signature
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Provenance, d.Kind, name, d.FilePath)
	}
	return tw.Flush()
}
