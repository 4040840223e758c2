package process

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		script  string
		signal  syscall.Signal
		want    int
		wantErr bool
	}{
		"clean exit":        {script: "exit 0", want: 0},
		"non-zero exit":     {script: "exit 3", want: 3},
		"killed by SIGKILL": {signal: syscall.SIGKILL, want: -int(syscall.SIGKILL)},
		"killed by SIGTERM": {signal: syscall.SIGTERM, want: -int(syscall.SIGTERM)},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var waitErr error
			if tc.signal != 0 {
				waitErr = signalledWaitError(t, tc.signal)
			} else {
				waitErr = exec.Command("sh", "-c", tc.script).Run()
			}

			got, err := ExitCode(waitErr)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ExitCode() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestExitCode_NonExitError(t *testing.T) {
	t.Parallel()

	want := errors.New("exec: Wait was already called")
	code, err := ExitCode(want)
	if !errors.Is(err, want) {
		t.Fatalf("expected the original error back, got %v", err)
	}
	if code != -1 {
		t.Errorf("code = %d, want -1", code)
	}
}

func TestSignaled(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		code    int
		wantSig syscall.Signal
		wantOK  bool
	}{
		"zero":     {code: 0},
		"positive": {code: 1},
		"sigkill":  {code: -9, wantSig: syscall.SIGKILL, wantOK: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sig, ok := Signaled(tc.code)
			if ok != tc.wantOK || sig != tc.wantSig {
				t.Errorf("Signaled(%d) = (%v, %v), want (%v, %v)", tc.code, sig, ok, tc.wantSig, tc.wantOK)
			}
		})
	}
}

func TestSpawn_InvalidArguments(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string
		argv []string
		want error
	}{
		"empty name":    {name: "", argv: []string{"true"}, want: ErrEmptyName},
		"nil argv":      {name: "p", argv: nil, want: ErrEmptyArgv},
		"empty program": {name: "p", argv: []string{""}, want: ErrEmptyArgv},
		"missing binary": {
			name: "p",
			argv: []string{"/nonexistent/procexpect-test-binary"},
			want: ErrSpawn,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, err := Spawn(tc.name, tc.argv, SpawnConfig{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("Spawn() error = %v, want %v", err, tc.want)
			}
			if h != nil {
				t.Fatal("expected nil handle on error")
			}
		})
	}
}

func TestHandle_MergedOutputAndReap(t *testing.T) {
	t.Parallel()

	h, err := Spawn("merged", []string{"sh", "-c", `echo out1; echo err1 1>&2; echo out2; exit 7`}, SpawnConfig{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if h.State() != StateLive {
		t.Fatalf("state = %v, want live", h.State())
	}
	if h.PID() <= 0 {
		t.Fatalf("PID() = %d, want positive", h.PID())
	}

	lines := drain(t, h)
	if diff := cmp.Diff([]string{"out1", "err1", "out2"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	code, dropped, err := h.Reap()
	if err != nil {
		t.Fatalf("Reap() error: %v", err)
	}
	if code != 7 || dropped != 0 {
		t.Errorf("Reap() = (%d, %d), want (7, 0)", code, dropped)
	}
	if h.FD() != -1 {
		t.Errorf("FD() after reap = %d, want -1", h.FD())
	}

	if _, _, err := h.Reap(); !errors.Is(err, ErrNotLive) {
		t.Errorf("second Reap() error = %v, want ErrNotLive", err)
	}

	got, ok := h.Consume()
	if !ok || got != 7 {
		t.Fatalf("Consume() = (%d, %v), want (7, true)", got, ok)
	}
	if _, ok := h.Consume(); ok {
		t.Fatal("second Consume() must report ok == false")
	}
	if h.State() != StateConsumed {
		t.Errorf("state = %v, want consumed", h.State())
	}
}

func TestHandle_UnterminatedFragmentDropped(t *testing.T) {
	t.Parallel()

	h, err := Spawn("fragment", []string{"sh", "-c", `printf 'whole\npartial'`}, SpawnConfig{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	lines := drain(t, h)
	if diff := cmp.Diff([]string{"whole"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	_, dropped, err := h.Reap()
	if err != nil {
		t.Fatalf("Reap() error: %v", err)
	}
	if dropped != len("partial") {
		t.Errorf("dropped = %d, want %d", dropped, len("partial"))
	}
}

func TestHandle_SignalKillsProcessGroup(t *testing.T) {
	t.Parallel()

	// The shell forks sleep into the same process group; both must die for
	// the pipe to reach EOF.
	h, err := Spawn("sleeper", []string{"sh", "-c", "sleep 60; echo never"}, SpawnConfig{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := h.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("Signal() error: %v", err)
	}

	start := time.Now()
	if lines := drain(t, h); len(lines) != 0 {
		t.Errorf("unexpected output: %q", lines)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("EOF took %v; process group was not killed", elapsed)
	}

	code, _, err := h.Reap()
	if err != nil {
		t.Fatalf("Reap() error: %v", err)
	}
	if code != -int(syscall.SIGKILL) {
		t.Errorf("code = %d, want %d", code, -int(syscall.SIGKILL))
	}
	if err := h.Signal(syscall.SIGKILL); !errors.Is(err, ErrNotLive) {
		t.Errorf("Signal() after reap error = %v, want ErrNotLive", err)
	}
}

func TestHandle_Discard(t *testing.T) {
	t.Parallel()

	h, err := Spawn("discard", []string{"sleep", "60"}, SpawnConfig{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := h.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("Signal() error: %v", err)
	}
	if err := h.Discard(5 * time.Second); err != nil {
		t.Fatalf("Discard() error: %v", err)
	}
	if h.State() != StateConsumed {
		t.Errorf("state = %v, want consumed", h.State())
	}
	if _, ok := h.Consume(); ok {
		t.Error("discarded handle must not yield an exit code")
	}
	// Discard is idempotent.
	if err := h.Discard(time.Second); err != nil {
		t.Errorf("second Discard() error: %v", err)
	}
}

func TestHandle_Argv(t *testing.T) {
	t.Parallel()

	h, err := Spawn("argv", []string{"true", "a", "b"}, SpawnConfig{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	defer func() { _ = h.Discard(5 * time.Second) }()

	argv := h.Argv()
	argv[0] = "mutated"
	if diff := cmp.Diff([]string{"true", "a", "b"}, h.Argv()); diff != "" {
		t.Errorf("Argv() must return a copy (-want +got):\n%s", diff)
	}
}

func TestHandle_NextLine(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		buf      string
		maxLine  int
		want     []string
		wantRest string
	}{
		"no terminator":       {buf: "abc", maxLine: 0, want: nil, wantRest: "abc"},
		"single line":         {buf: "abc\n", want: []string{"abc"}},
		"crlf stripped":       {buf: "abc\r\ndef\n", want: []string{"abc", "def"}},
		"keeps indentation":   {buf: "  1 | 2  \n", want: []string{"  1 | 2  "}},
		"empty line":          {buf: "\nx\n", want: []string{"", "x"}},
		"partial tail kept":   {buf: "a\nbc", want: []string{"a"}, wantRest: "bc"},
		"overlong line split": {buf: "abcdefg\n", maxLine: 3, want: []string{"abc", "def", "g"}},
		"newline at limit":    {buf: "abc\n", maxLine: 3, want: []string{"abc"}},
		"overlong without nl": {buf: "abcdefg", maxLine: 3, want: []string{"abc", "def"}, wantRest: "g"},
		"crlf at limit":       {buf: "abcd\r\nef\n", maxLine: 4, want: []string{"abcd", "ef"}},
		"overlong crlf split": {buf: "abcde\r\n", maxLine: 4, want: []string{"abcd", "e"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := &Handle{buf: []byte(tc.buf)}
			var got []string
			for h.HasLine(tc.maxLine) {
				line, ok := h.NextLine(tc.maxLine)
				if !ok {
					t.Fatal("HasLine reported true but NextLine returned ok == false")
				}
				got = append(got, line)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
			if rest := string(h.buf); rest != tc.wantRest {
				t.Errorf("remaining buffer = %q, want %q", rest, tc.wantRest)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateLive:     "live",
		StateReaped:   "reaped",
		StateConsumed: "consumed",
		State(42):     "State(42)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

// drain reads h until EOF through a Poller and returns the complete lines.
func drain(tb testing.TB, h *Handle) []string {
	tb.Helper()

	p, err := NewPoller()
	if err != nil {
		tb.Fatalf("NewPoller() error: %v", err)
	}
	defer func() { _ = p.Close() }()

	deadline := time.Now().Add(30 * time.Second)
	var lines []string
	for {
		for h.HasLine(0) {
			line, _ := h.NextLine(0)
			lines = append(lines, line)
		}
		ready, _, err := p.Wait([]int{h.FD()}, deadline)
		if err != nil {
			tb.Fatalf("Wait() error: %v", err)
		}
		if len(ready) == 0 {
			tb.Fatal("timed out waiting for output")
		}
		eof, err := h.Fill()
		if err != nil {
			tb.Fatalf("Fill() error: %v", err)
		}
		if eof {
			for h.HasLine(0) {
				line, _ := h.NextLine(0)
				lines = append(lines, line)
			}
			return lines
		}
	}
}

// signalledWaitError returns the cmd.Wait error of a process killed by sig.
func signalledWaitError(tb testing.TB, sig syscall.Signal) error {
	tb.Helper()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		tb.Fatalf("test setup: start sleep: %v", err)
	}
	if err := cmd.Process.Signal(sig); err != nil {
		_ = cmd.Process.Kill()
		tb.Fatalf("test setup: signal process with %v: %v", sig, err)
	}
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		tb.Fatalf("test setup: expected *exec.ExitError from signaled process, got %v", err)
	}
	return err
}
