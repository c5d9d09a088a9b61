package index

import "github.com/dusk-indust/regenmerge/internal/decl"

// DeclKind classifies indexed declarations.
type DeclKind string

const (
	DeclKindType   DeclKind = "type"
	DeclKindField  DeclKind = "field"
	DeclKindMethod DeclKind = "method"
)

// FileNode is an indexed source file.
type FileNode struct {
	Path      string        `json:"path"`
	Language  decl.Language `json:"language"`
	DeclCount int           `json:"declCount"`
}

// DeclNode is one declaration of an indexed file with its provenance.
type DeclNode struct {
	FilePath string   `json:"filePath"`
	TypeName string   `json:"typeName"`
	Kind     DeclKind `json:"kind"`
	// Name is the type, field or method name.
	Name string `json:"name"`
	// Signature is set for methods.
	Signature  string          `json:"signature,omitempty"`
	Provenance decl.Provenance `json:"provenance"`
}

// ID returns the identity of the declaration within the index:
// "filePath:Type", "filePath:Type.field" or "filePath:Type.sig(...)".
func (d DeclNode) ID() string {
	switch d.Kind {
	case DeclKindType:
		return d.FilePath + ":" + d.TypeName
	case DeclKindMethod:
		return d.FilePath + ":" + d.TypeName + "." + d.Signature
	default:
		return d.FilePath + ":" + d.TypeName + "." + d.Name
	}
}

// Query filters declarations. Zero-valued fields match everything.
type Query struct {
	// Name matches declarations whose name contains it, case-insensitively.
	Name       string
	Kind       DeclKind
	Provenance *decl.Provenance
	FilePath   string
	// Limit caps the result count; <= 0 means no limit.
	Limit int
}

// Stats summarizes the index.
type Stats struct {
	FileCount int `json:"fileCount"`
	DeclCount int `json:"declCount"`
	Generated int `json:"generated"`
	Manual    int `json:"manual"`
	Unmarked  int `json:"unmarked"`
}
