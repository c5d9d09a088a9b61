package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/index"
	"github.com/dusk-indust/regenmerge/internal/mcptools"
)

func newServeMCPCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the merge and index tools over MCP",
		Long: `Serve the merge and index tools over the Model Context Protocol.

By default the server speaks MCP on stdio. With --http it serves the
streamable HTTP transport on the given address instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeMCP(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "listen address for the HTTP transport (e.g. :8080)")
	return cmd
}

func runServeMCP(ctx context.Context, a *app, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, a.indexPath(), a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	merger, adapter := a.newMerger()
	defer adapter.Close()

	svc := mcptools.NewMergeService(merger, index.NewIndexer(store, adapter, a.classifier(), a.logger), a.logger)
	server := mcptools.NewMCPServer(svc)

	if addr != "" {
		a.logger.Info("serving MCP over HTTP", zap.String("addr", addr))
		return mcptools.RunHTTP(ctx, server, addr)
	}
	return mcptools.RunStdio(ctx, server)
}
