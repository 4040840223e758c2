package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrEmptyDir is returned when a directory path is empty.
const ErrEmptyDir = sentinel.Error("directory path must not be empty")

// dirMode is the permission of directories created by this package.
const dirMode os.FileMode = 0o755

// EnsureDir creates path and its missing parents. An existing directory is
// left untouched.
func EnsureDir(path string) error {
	if path == "" {
		return ErrEmptyDir
	}
	if err := os.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the directory that will hold filePath.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("prepare directory for %s: %w", filePath, err)
	}
	return nil
}
