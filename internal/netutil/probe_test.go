package netutil

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestProbeTCP(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port

	ok, err := ProbeTCP(context.Background(), "127.0.0.1", port)
	if err != nil || !ok {
		t.Fatalf("ProbeTCP() on listening port = (%v, %v), want (true, nil)", ok, err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	ok, err = ProbeTCP(context.Background(), "127.0.0.1", port)
	if err != nil || ok {
		t.Errorf("ProbeTCP() on closed port = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestProbeTCP_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ProbeTCP(ctx, "127.0.0.1", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("ProbeTCP() error = %v, want %v", err, context.Canceled)
	}
}
