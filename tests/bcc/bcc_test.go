//go:build integration

package bcc_test

import (
	"context"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/giantswarm/procexpect"
	"github.com/giantswarm/procexpect/internal/bcc"
	"github.com/giantswarm/procexpect/internal/config"
	"github.com/giantswarm/procexpect/tests/internal/testutil"
)

func currentUser(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	return u.Username
}

// startServer initialises and starts one postgres server on a free port.
func startServer(ctx context.Context, t *testing.T, s procexpect.Session) bcc.Backend {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "data")
	if err := bcc.InitDBs(ctx, s, "initdb", []string{dir}); err != nil {
		t.Fatalf("InitDBs() error: %v", err)
	}

	b := bcc.Backend{Host: "127.0.0.1", Port: testutil.FreePorts(t, 1)[0], DataDir: dir, SocketDir: dir}
	if _, err := bcc.StartPostgres(ctx, s, slog.Default(), "postgres", []bcc.Backend{b}, time.Minute); err != nil {
		t.Fatalf("StartPostgres() error: %v", err)
	}
	return b
}

// TestPostgresHistoryRoundTrip initialises pgbench against one real server
// and reads the (empty) history twice; both reads must agree.
func TestPostgresHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := testutil.NewSession(t)
	b := startServer(ctx, t, s)
	target := bcc.Target{Host: b.Host, Port: b.Port, Database: "postgres", User: currentUser(t)}

	if err := s.Spawn("pgbench", bcc.PgbenchArgv("pgbench", target, bcc.Bench{Init: true})...); err != nil {
		t.Fatalf("Spawn(pgbench) error: %v", err)
	}
	results, err := s.Capture(ctx, "pgbench")
	if err != nil {
		t.Fatalf("Capture(pgbench) error: %v", err)
	}
	if r := results["pgbench"]; r.ExitCode != 0 {
		t.Fatalf("pgbench -i exited %d: %v", r.ExitCode, r.Lines)
	}

	for _, name := range []string{"psql-a", "psql-b"} {
		if err := s.Spawn(name, bcc.PsqlArgv("psql", target, bcc.HistoryQuery)...); err != nil {
			t.Fatalf("Spawn(%s) error: %v", name, err)
		}
	}
	cmp, err := bcc.EqualResults(ctx, s, "psql-a", "psql-b")
	if err != nil {
		t.Fatalf("EqualResults() error: %v", err)
	}
	if !cmp.Equal {
		t.Fatalf("results differ: %v", cmp.Results)
	}
	if cmp.Summary() != "(0 rows)" {
		t.Errorf("Summary() = %q, want (0 rows)", cmp.Summary())
	}

	// The server must have survived all of it.
	ev, err := s.Expect(ctx, nil, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Expect() error: %v", err)
	}
	if ev.Kind != procexpect.EventTimeout {
		t.Errorf("Expect() = %v, want timeout", ev)
	}
}

// TestPostgresKill checks that a killed server is reported with -SIGKILL.
func TestPostgresKill(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := testutil.NewSession(t)
	b := startServer(ctx, t, s)

	if err := s.Kill(b.Name()); err != nil {
		t.Fatalf("Kill() error: %v", err)
	}
	ev, err := s.Expect(ctx, nil, 30*time.Second)
	if err != nil {
		t.Fatalf("Expect() error: %v", err)
	}
	if ev.Kind != procexpect.EventExit || ev.Name != b.Name() {
		t.Fatalf("Expect() = %v, want exit of %s", ev, b.Name())
	}
	if code, ok := s.ExitCode(b.Name()); !ok || code != -9 {
		t.Errorf("ExitCode() = (%d, %v), want (-9, true)", code, ok)
	}
}

// TestFullCheck runs the complete check. It needs a pgbouncer built with
// bcc support, named by BCCTEST_PGBOUNCER.
func TestFullCheck(t *testing.T) {
	t.Parallel()

	pgbouncer := os.Getenv("BCCTEST_PGBOUNCER")
	if pgbouncer == "" {
		t.Skip("BCCTEST_PGBOUNCER not set")
	}

	cfg := config.Default()
	cfg.User = currentUser(t)
	cfg.Primary.Port = 0
	cfg.Secondary.Port = 0
	cfg.BouncerPort = 0
	cfg.Binaries.Pgbouncer = pgbouncer
	cfg.Bench.Duration = config.Duration(5 * time.Second)
	cfg.OutputDir = t.TempDir()
	cfg.PgbouncerLog = filepath.Join(t.TempDir(), "pgbouncer.log")
	cfg.TranscriptDir = filepath.Join(t.TempDir(), "transcripts")

	rep, err := bcc.Run(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !rep.OK {
		t.Fatalf("Run() report = %+v, see transcripts in %s", rep, cfg.TranscriptDir)
	}
}
