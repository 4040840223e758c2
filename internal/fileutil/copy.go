package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrEmptySrc is returned when a source path is empty.
const ErrEmptySrc = sentinel.Error("source path must not be empty")

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// defaultMode is the permission of files written by this package.
const defaultMode os.FileMode = 0o644

// CopyFile copies src to dst, creating parent directories as needed. dst is
// replaced atomically.
func CopyFile(src, dst string) (retErr error) {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	srcFile, err := os.Open(src) //nolint:gosec // G304: paths are from controlled sources
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := srcFile.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close source: %w", closeErr)
		}
	}()

	return writeAtomic(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, srcFile); err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		return nil
	})
}

// WriteFile writes data to path atomically, creating parent directories as
// needed.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return ErrEmptyDst
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteLines writes each line followed by a newline to path atomically.
func WriteLines(path string, lines []string) error {
	if path == "" {
		return ErrEmptyDst
	}
	return writeAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, line := range lines {
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// writeAtomic runs write against a temp file in the directory of dst, then
// syncs it and renames it over dst. The temp file is removed on failure.
func writeAtomic(dst string, write func(io.Writer) error) (retErr error) {
	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(defaultMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	// fsync before rename, or a crash can leave dst with incomplete contents.
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}
