package core

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/procexpect/internal/fileutil"
)

// transcript is an open per-process log file.
type transcript struct {
	f *os.File
	w *bufio.Writer
}

// Transcripts writes every line read from a process to <dir>/<name>.log.
// A nil *Transcripts is valid and discards everything, which is what a
// session without a transcript directory uses.
type Transcripts struct {
	dir   string
	files map[string]*transcript
	log   *slog.Logger
}

// NewTranscripts returns a Transcripts writing into dir, or nil when dir is
// empty. The directory is created on first use.
func NewTranscripts(dir string, log *slog.Logger) *Transcripts {
	if dir == "" {
		return nil
	}
	return &Transcripts{dir: dir, files: make(map[string]*transcript), log: log}
}

// Path returns the transcript file of the process name.
func (t *Transcripts) Path(name string) string {
	return filepath.Join(t.dir, TranscriptFileName(name))
}

// Open starts the transcript for name, appending when a process of the same
// name was spawned before.
func (t *Transcripts) Open(name string) error {
	if t == nil {
		return nil
	}
	if _, ok := t.files[name]; ok {
		return nil
	}
	if err := fileutil.EnsureDir(t.dir); err != nil {
		return fmt.Errorf("transcript for %s: %w", name, err)
	}
	path := t.Path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: path is built from the transcript dir
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", path, err)
	}
	t.files[name] = &transcript{f: f, w: bufio.NewWriter(f)}
	return nil
}

// Write appends line to the transcript of name. Write errors are logged and
// the transcript is closed; a broken transcript never fails a read.
func (t *Transcripts) Write(name, line string) {
	if t == nil {
		return
	}
	tr, ok := t.files[name]
	if !ok {
		return
	}
	if _, err := tr.w.WriteString(line + "\n"); err != nil {
		t.log.Warn("transcript write failed; closing it", "process", name, "error", err)
		_ = t.Close(name)
	}
}

// Close flushes and closes the transcript of name.
func (t *Transcripts) Close(name string) error {
	if t == nil {
		return nil
	}
	tr, ok := t.files[name]
	if !ok {
		return nil
	}
	delete(t.files, name)
	if err := errors.Join(tr.w.Flush(), tr.f.Close()); err != nil {
		return fmt.Errorf("close transcript of %s: %w", name, err)
	}
	return nil
}

// CloseAll closes every open transcript.
func (t *Transcripts) CloseAll() error {
	if t == nil {
		return nil
	}
	var errs []error
	for name := range t.files {
		if err := t.Close(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TranscriptFileName maps a process name such as "postgres /tmp/data1" to a
// file name that is safe in any directory: every character outside
// [A-Za-z0-9._-] becomes '_'. When that changes the name, the first eight hex
// digits of the name's SHA-256 are appended, so "a b" and "a_b" get
// different files.
func TranscriptFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	if strings.Trim(safe, ".") == "" {
		safe = "_" + safe
	}
	if safe != name {
		sum := sha256.Sum256([]byte(name))
		safe += "-" + hex.EncodeToString(sum[:4])
	}
	return safe + ".log"
}
