package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquire_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Acquire(context.Background(), "", nil); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("Acquire() error = %v, want %v", err, ErrEmptyPath)
	}
	if _, err := TryAcquire("", nil); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("TryAcquire() error = %v, want %v", err, ErrEmptyPath)
	}
}

func TestAcquire_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "bcctest.lock")
	l, err := Acquire(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer l.Release()

	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
}

func TestAcquire_Exclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bcctest.lock")
	held, err := Acquire(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	other, err := TryAcquire(path, nil)
	if err != nil {
		t.Fatalf("TryAcquire() error: %v", err)
	}
	if other != nil {
		other.Release()
		t.Fatal("TryAcquire() succeeded while the lock was held")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, path, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want %v", err, context.DeadlineExceeded)
	}

	held.Release()

	again, err := TryAcquire(path, nil)
	if err != nil {
		t.Fatalf("TryAcquire() after release error: %v", err)
	}
	if again == nil {
		t.Fatal("TryAcquire() failed after release")
	}
	again.Release()
}

func TestRelease_Idempotent(t *testing.T) {
	t.Parallel()

	l, err := Acquire(context.Background(), filepath.Join(t.TempDir(), "x.lock"), nil)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	l.Release()
	l.Release()

	var nilLock *Lock
	nilLock.Release()
}
