package core

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// SessionConfig holds configuration for a Session.
//
// All fields are immutable after NewSession returns. Handles spawned by the
// session read Dir and Env without synchronization, relying on this.
type SessionConfig struct {
	// MaxLineSize is the longest line the multiplexer returns. A process
	// that writes more bytes than this without a newline has the run split
	// into MaxLineSize pieces, each returned as its own line.
	MaxLineSize int

	// ReapTimeout bounds how long Finish waits for each killed process to
	// exit. A process still running after this is left to init.
	ReapTimeout time.Duration

	// Dir is the working directory of spawned processes. Empty means the
	// caller's working directory.
	Dir string

	// Env is the environment of spawned processes. Nil means the caller's
	// environment.
	Env []string

	// TranscriptDir, when non-empty, receives one <name>.log file per
	// spawned process containing every line read from it.
	TranscriptDir string

	// DiscardFunc receives every line and exit event that Expect or Capture
	// drop because the caller did not ask for them. Nil logs them at Debug.
	DiscardFunc func(Event)
}

// Validate checks all SessionConfig invariants and returns an error describing
// every violation found, joined with errors.Join.
//
// NewSession panics on a Validate error, since an invalid config is a
// programmer error.
func (c SessionConfig) Validate() error {
	var errs []error

	if c.MaxLineSize <= 0 {
		errs = append(errs, fmt.Errorf("max line size must be greater than 0, got %d", c.MaxLineSize))
	}
	if c.ReapTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reap timeout must be greater than 0, got %s", c.ReapTimeout))
	}
	if c.Dir != "" {
		if fi, err := os.Stat(c.Dir); err != nil {
			errs = append(errs, fmt.Errorf("working directory: %w", err))
		} else if !fi.IsDir() {
			errs = append(errs, fmt.Errorf("working directory %s is not a directory", c.Dir))
		}
	}
	for i, kv := range c.Env {
		if kv == "" {
			errs = append(errs, fmt.Errorf("environment entry %d must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
