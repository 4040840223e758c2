package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rel []string
	}{
		"new directory":      {rel: []string{"newdir"}},
		"nested directories": {rel: []string{"a", "b", "c"}},
		"existing directory": {rel: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := filepath.Join(append([]string{t.TempDir()}, tc.rel...)...)

			if err := EnsureDir(dir); err != nil {
				t.Fatalf("EnsureDir() error: %v", err)
			}
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("stat after EnsureDir: %v", err)
			}
			if !info.IsDir() {
				t.Error("expected directory, got file")
			}
		})
	}
}

func TestEnsureDir_PathIsFile(t *testing.T) {
	t.Parallel()
	file := createTestFile(t, t.TempDir(), "file.txt", "x")

	if err := EnsureDir(filepath.Join(file, "sub")); err == nil {
		t.Error("EnsureDir() under a regular file succeeded, want error")
	}
}

func TestEnsureDir_EmptyPath(t *testing.T) {
	t.Parallel()

	if err := EnsureDir(""); !errors.Is(err, ErrEmptyDir) {
		t.Errorf("EnsureDir(\"\") error = %v, want ErrEmptyDir", err)
	}
}

func TestEnsureDirForFile(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	filePath := filepath.Join(base, "transcripts", "postgres.log")

	if err := EnsureDirForFile(filePath); err != nil {
		t.Fatalf("EnsureDirForFile() error: %v", err)
	}
	info, err := os.Stat(filepath.Dir(filePath))
	if err != nil {
		t.Fatalf("stat parent dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected parent to be directory")
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Errorf("file itself must not be created, stat error = %v", err)
	}
}
