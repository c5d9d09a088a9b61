package merge

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/regenmerge/internal/source"
)

// Side names one of the two inputs of a merge.
type Side string

const (
	SideExisting  Side = "existing"
	SideGenerated Side = "generated"
)

// ParseError reports malformed source on one side of a merge.
type ParseError struct {
	Side    Side
	Path    string
	Message string
	// Line and Column are 1-based; zero when unknown.
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<" + string(e.Side) + ">"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	return fmt.Sprintf("parse %s source %s: %s", e.Side, loc, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// newParseError converts an adapter failure into a ParseError, keeping the
// position of syntax errors.
func newParseError(side Side, path string, err error) *ParseError {
	pe := &ParseError{Side: side, Path: path, Message: err.Error(), Err: err}
	var syn *source.SyntaxError
	if errors.As(err, &syn) {
		pe.Message = syn.Message
		pe.Line = syn.Line
		pe.Column = syn.Column
	}
	return pe
}

// MissingPrimaryDeclarationError is returned when a parsed unit declares no
// top-level type to merge.
type MissingPrimaryDeclarationError struct {
	Side Side
	Path string
}

func (e *MissingPrimaryDeclarationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s source %s has no primary type declaration", e.Side, e.Path)
	}
	return fmt.Sprintf("%s source has no primary type declaration", e.Side)
}

// IOError reports a failure to read the existing file other than it not
// existing.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
