package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover walks generatedDir and pairs every file with the same relative
// path under targetDir. Include patterns, when set, select files; exclude
// patterns drop them. Patterns are doublestar globs matched against the
// slash-separated relative path. Backup directories are never descended.
func Discover(generatedDir, targetDir string, include, exclude []string, backupDir string) ([]Unit, error) {
	include = normalizePatterns(include)
	exclude = normalizePatterns(exclude)
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	var units []Unit
	err := filepath.WalkDir(generatedDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != generatedDir && (d.Name() == backupDir || d.Name() == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(generatedDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if len(include) > 0 && !matchesAny(include, rel) {
			return nil
		}
		if matchesAny(exclude, rel) {
			return nil
		}
		units = append(units, Unit{
			Rel:       rel,
			Generated: path,
			Target:    filepath.Join(targetDir, filepath.FromSlash(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", generatedDir, err)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Rel < units[j].Rel })
	return units, nil
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
