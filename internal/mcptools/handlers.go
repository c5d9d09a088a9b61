package mcptools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dusk-indust/regenmerge/internal/decl"
	"github.com/dusk-indust/regenmerge/internal/index"
	"github.com/dusk-indust/regenmerge/internal/merge"
)

// MergeService holds the merger and provenance index used by MCP tool
// handlers.
type MergeService struct {
	merger  *merge.Merger
	indexer *index.Indexer
	logger  *zap.Logger
}

// NewMergeService creates a MergeService. A nil logger discards output.
func NewMergeService(merger *merge.Merger, indexer *index.Indexer, logger *zap.Logger) *MergeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeService{merger: merger, indexer: indexer, logger: logger}
}

// MergeSource merges generated text into an existing file or text. Nothing
// is written to disk.
func (s *MergeService) MergeSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeSourceInput,
) (*mcp.CallToolResult, MergeSourceOutput, error) {
	if input.Generated == "" {
		return nil, MergeSourceOutput{}, fmt.Errorf("generated is required")
	}

	var (
		res *merge.Result
		err error
	)
	if input.ExistingPath != "" {
		res, err = s.merger.MergeWithExisting(ctx, []byte(input.Generated), input.ExistingPath)
	} else {
		if input.Language == "" {
			return nil, MergeSourceOutput{}, fmt.Errorf("language is required when existingPath is empty")
		}
		var existing []byte
		if input.Existing != "" {
			existing = []byte(input.Existing)
		}
		lang := decl.Language(strings.ToLower(input.Language))
		res, err = s.merger.MergeSource(ctx, lang, []byte(input.Generated), existing)
	}
	if err != nil {
		return nil, MergeSourceOutput{}, err
	}

	s.logger.Debug("merge_source",
		zap.String("path", input.ExistingPath),
		zap.Bool("new_file", res.IsNewFile),
		zap.Bool("has_changes", res.HasChanges()))
	return nil, MergeSourceOutput{
		MergedSource: string(res.MergedSource),
		IsNewFile:    res.IsNewFile,
		HasChanges:   res.HasChanges(),
		Changes:      res.Changes,
	}, nil
}

// IndexDirectory records the declarations of every supported file under a
// directory in the provenance index.
func (s *MergeService) IndexDirectory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexDirectoryInput,
) (*mcp.CallToolResult, IndexDirectoryOutput, error) {
	if input.Path == "" {
		return nil, IndexDirectoryOutput{}, fmt.Errorf("path is required")
	}
	info, err := os.Stat(input.Path)
	if err != nil {
		return nil, IndexDirectoryOutput{}, fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return nil, IndexDirectoryOutput{}, fmt.Errorf("path is not a directory: %s", input.Path)
	}

	res, err := s.indexer.IndexDir(ctx, input.Path, input.Include, input.Exclude)
	var out IndexDirectoryOutput
	if err != nil {
		errs, ok := fileErrors(err)
		if !ok || res == nil {
			return nil, IndexDirectoryOutput{}, fmt.Errorf("index %s: %w", input.Path, err)
		}
		out.Errors = errs
	}
	out.Result = *res

	stats, err := s.indexer.Store().Stats(ctx)
	if err != nil {
		return nil, IndexDirectoryOutput{}, fmt.Errorf("stats: %w", err)
	}
	out.Stats = *stats
	return nil, out, nil
}

// fileErrors flattens the per-file failures aggregated by IndexDir. It
// reports false when err is not such an aggregate.
func fileErrors(err error) ([]string, bool) {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return nil, false
	}
	return lo.Map(merr.Errors, func(e error, _ int) string { return e.Error() }), true
}

// QueryDeclarations searches the provenance index.
func (s *MergeService) QueryDeclarations(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryDeclarationsInput,
) (*mcp.CallToolResult, QueryDeclarationsOutput, error) {
	q := index.Query{
		Name:     input.Name,
		Kind:     index.DeclKind(strings.ToLower(input.Kind)),
		FilePath: input.FilePath,
		Limit:    input.Limit,
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if input.Provenance != "" {
		p, err := decl.ParseProvenance(strings.ToLower(input.Provenance))
		if err != nil {
			return nil, QueryDeclarationsOutput{}, err
		}
		q.Provenance = &p
	}

	nodes, err := s.indexer.Store().QueryDecls(ctx, q)
	if err != nil {
		return nil, QueryDeclarationsOutput{}, fmt.Errorf("query declarations: %w", err)
	}
	decls := lo.Map(nodes, func(n index.DeclNode, _ int) Declaration {
		return Declaration{
			FilePath:   n.FilePath,
			TypeName:   n.TypeName,
			Kind:       string(n.Kind),
			Name:       n.Name,
			Signature:  n.Signature,
			Provenance: n.Provenance.String(),
		}
	})
	return nil, QueryDeclarationsOutput{Declarations: decls, Total: len(decls)}, nil
}
