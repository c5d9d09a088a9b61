package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const backupStamp = "20060102_150405"

// BackupPath returns where a backup of target taken at now is stored:
// <dir of target>/<backupDir>/<name>_<yyyyMMdd_HHmmss><ext>.bak.
func BackupPath(target, backupDir string, now time.Time) string {
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	file := fmt.Sprintf("%s_%s%s.bak", name, now.Format(backupStamp), ext)
	return filepath.Join(filepath.Dir(target), backupDir, file)
}

// backup copies data, the current content of target, to its backup path.
func backup(target string, data []byte, backupDir string, now time.Time) (string, error) {
	path := BackupPath(target, backupDir, now)
	if err := writeAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("backup %s: %w", target, err)
	}
	return path, nil
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partial file.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// targetMode returns the permissions to write target with.
func targetMode(target string) fs.FileMode {
	if info, err := os.Stat(target); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
