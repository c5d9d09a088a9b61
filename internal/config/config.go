package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/regenmerge/internal/provenance"
)

// UnsupportedPolicy decides what a batch does with files no adapter handles.
type UnsupportedPolicy string

const (
	// UnsupportedSkip leaves the target untouched.
	UnsupportedSkip UnsupportedPolicy = "skip"
	// UnsupportedOverwrite replaces the target with the generated file.
	UnsupportedOverwrite UnsupportedPolicy = "overwrite"
	// UnsupportedError fails the unit.
	UnsupportedError UnsupportedPolicy = "error"
)

// DefaultBackupDir is where backups go, relative to each target's directory.
const DefaultBackupDir = ".backups"

// ProjectConfig holds project-level settings loaded from .regenmerge.yml.
type ProjectConfig struct {
	Markers     provenance.Markers `yaml:"markers,omitempty"`
	Concurrency int                `yaml:"concurrency,omitempty"`
	Backup      bool               `yaml:"backup"`
	BackupDir   string             `yaml:"backupDir,omitempty"`
	Include     []string           `yaml:"include,omitempty"`
	Exclude     []string           `yaml:"exclude,omitempty"`
	Unsupported UnsupportedPolicy  `yaml:"unsupported,omitempty"`
	IndexPath   string             `yaml:"indexPath,omitempty"`
	Verbose     bool               `yaml:"verbose,omitempty"`
}

// Load attempts to read .regenmerge.yml or .regenmerge.yaml from the given
// directory. Returns a defaulted config (not an error) if no config file
// exists. Backups are on unless the file sets backup: false.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{".regenmerge.yml", ".regenmerge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cfg := ProjectConfig{Backup: true}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.applyDefaults()
		return &cfg, nil
	}
	cfg := &ProjectConfig{Backup: true}
	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *ProjectConfig) Validate() error {
	switch c.Unsupported {
	case "", UnsupportedSkip, UnsupportedOverwrite, UnsupportedError:
	default:
		return fmt.Errorf("unsupported: unknown policy %q (want skip, overwrite or error)", c.Unsupported)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency: must not be negative, got %d", c.Concurrency)
	}
	return nil
}

func (c *ProjectConfig) applyDefaults() {
	c.Markers = c.Markers.WithDefaults()
	if c.Concurrency == 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.BackupDir == "" {
		c.BackupDir = DefaultBackupDir
	}
	if c.Unsupported == "" {
		c.Unsupported = UnsupportedSkip
	}
}
