package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the merge and index tools
// registered.
func NewMCPServer(svc *MergeService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "regenmerge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_source",
		Description: "Merge freshly generated source into an existing file or source text. Manual and unmarked members are preserved, generated methods are replaced and new members are added. Returns the merged text and a change summary; nothing is written to disk.",
	}, svc.MergeSource)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_directory",
		Description: "Parse every supported source file under a directory and record its declarations with their provenance (generated, manual, unmarked) in the index.",
	}, svc.IndexDirectory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_declarations",
		Description: "Search indexed declarations by name substring, kind, provenance or file.",
	}, svc.QueryDeclarations)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP tools over streamable HTTP on addr until the
// context is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
