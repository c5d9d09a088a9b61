package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// ErrAbsent signals that the file to load does not exist.
var ErrAbsent = errors.New("source file does not exist")

// Loader reads and parses source files through an Adapter.
type Loader struct {
	adapter Adapter
}

// NewLoader creates a Loader backed by adapter.
func NewLoader(adapter Adapter) *Loader {
	return &Loader{adapter: adapter}
}

// Read returns the contents of path. A missing file yields ErrAbsent; any
// other failure is returned wrapped.
func (l *Loader) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Load reads and parses path, inferring the language from its extension.
func (l *Loader) Load(ctx context.Context, path string) (*decl.Unit, []byte, error) {
	lang, ok := LanguageForPath(path)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	data, err := l.Read(path)
	if err != nil {
		return nil, nil, err
	}
	unit, err := l.adapter.Parse(ctx, data, lang)
	if err != nil {
		return nil, data, err
	}
	return unit, data, nil
}
