//go:build integration

// Package testutil provides shared helpers for integration test packages.
package testutil

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/giantswarm/procexpect"
	"github.com/giantswarm/procexpect/internal/netutil"
)

// nameCounter is an atomic counter used by UniqueName to generate process
// names that are unique across parallel test goroutines.
var nameCounter atomic.Int64

// UniqueName returns a name that is unique across all parallel tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameCounter.Add(1))
}

// SetupTestLogging configures slog based on the PROCEXPECT_LOG_LEVEL
// environment variable. This only affects test runs; the library itself
// inherits the application's logging config.
func SetupTestLogging() {
	levelStr := os.Getenv("PROCEXPECT_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	procexpect.SetLogger(slog.Default().With("component", "procexpect"))
}

// RequireBinariesOrExit checks that every binary is in PATH, exiting the
// process (via os.Exit) if not. This is used in TestMain where *testing.T is
// not available.
func RequireBinariesOrExit(bins ...string) {
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			fmt.Fprintf(os.Stderr, "%s binary not found in PATH\nInstall the PostgreSQL server and client packages.\n", bin)
			os.Exit(1)
		}
	}
}

// NewSession returns a session that is finished when the test ends.
//
//nolint:ireturn // Test helper returns the public Session interface.
func NewSession(t *testing.T, opts ...procexpect.SessionOption) procexpect.Session {
	t.Helper()
	s := procexpect.New(opts...)
	t.Cleanup(func() {
		if err := s.Finish(); err != nil {
			t.Logf("finish: %v", err)
		}
	})
	return s
}

var ports = netutil.NewPortRegistry(nil)

// FreePorts returns n distinct free loopback ports, released when the test
// ends.
func FreePorts(t *testing.T, n int) []int {
	t.Helper()
	p, err := ports.AllocatePorts(n)
	if err != nil {
		t.Fatalf("allocate ports: %v", err)
	}
	t.Cleanup(func() { ports.Release(p...) })
	return p
}

const defaultStressSubtests = 50

var (
	stressSubtestsOnce  sync.Once
	stressSubtestsCount int
)

// StressSubtestCount returns the number of stress subtests to run, reading
// PROCEXPECT_STRESS_SUBTESTS on first call. Panics if the env var is set but
// invalid.
func StressSubtestCount() int {
	stressSubtestsOnce.Do(func() {
		stressSubtestsCount = defaultStressSubtests
		if v := os.Getenv("PROCEXPECT_STRESS_SUBTESTS"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				panic(fmt.Sprintf("invalid PROCEXPECT_STRESS_SUBTESTS=%q: must be a positive integer", v))
			}
			stressSubtestsCount = n
		}
	})
	return stressSubtestsCount
}
