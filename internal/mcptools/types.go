package mcptools

import (
	"github.com/dusk-indust/regenmerge/internal/index"
	"github.com/dusk-indust/regenmerge/internal/merge"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// MergeSourceInput is the input for the merge_source MCP tool.
type MergeSourceInput struct {
	Generated    string `json:"generated" jsonschema:"the freshly generated source text"`
	ExistingPath string `json:"existingPath,omitempty" jsonschema:"path of the existing file to merge into; the language is inferred from its extension and a missing file is treated as new"`
	Existing     string `json:"existing,omitempty" jsonschema:"existing source text, used when existingPath is empty; leave both empty for a new file"`
	Language     string `json:"language,omitempty" jsonschema:"language when existingPath is empty: java, go, typescript, python, rust"`
}

// MergeSourceOutput is the result of the merge_source MCP tool.
type MergeSourceOutput struct {
	MergedSource string               `json:"mergedSource"`
	IsNewFile    bool                 `json:"isNewFile"`
	HasChanges   bool                 `json:"hasChanges"`
	Changes      merge.ChangeAnalysis `json:"changes"`
}

// IndexDirectoryInput is the input for the index_directory MCP tool.
type IndexDirectoryInput struct {
	Path    string   `json:"path" jsonschema:"the directory to index"`
	Include []string `json:"include,omitempty" jsonschema:"doublestar globs selecting files relative to path"`
	Exclude []string `json:"exclude,omitempty" jsonschema:"doublestar globs dropping files relative to path"`
}

// IndexDirectoryOutput is the result of the index_directory MCP tool.
type IndexDirectoryOutput struct {
	Result index.DirResult `json:"result"`
	Stats  index.Stats     `json:"stats"`
	Errors []string        `json:"errors,omitempty"`
}

// QueryDeclarationsInput is the input for the query_declarations MCP tool.
type QueryDeclarationsInput struct {
	Name       string `json:"name,omitempty" jsonschema:"substring of the declaration name (case-insensitive)"`
	Kind       string `json:"kind,omitempty" jsonschema:"type, field or method"`
	Provenance string `json:"provenance,omitempty" jsonschema:"generated, manual or unmarked"`
	FilePath   string `json:"filePath,omitempty" jsonschema:"restrict to one indexed file"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// Declaration is one indexed declaration as returned by query_declarations.
type Declaration struct {
	FilePath   string `json:"filePath"`
	TypeName   string `json:"typeName"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Signature  string `json:"signature,omitempty"`
	Provenance string `json:"provenance"`
}

// QueryDeclarationsOutput is the result of the query_declarations MCP tool.
type QueryDeclarationsOutput struct {
	Declarations []Declaration `json:"declarations"`
	Total        int           `json:"total"`
}
