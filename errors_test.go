package procexpect_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/giantswarm/procexpect"
)

// TestPublicErrorConstants verifies that every exported error constant:
//   - implements the error interface (Error() returns a non-empty string)
//   - matches itself via errors.Is, directly and when wrapped
//   - does not match an unrelated error
func TestPublicErrorConstants(t *testing.T) {
	t.Parallel()

	allErrors := map[string]error{
		"ErrEmptyArgv":         procexpect.ErrEmptyArgv,
		"ErrEmptyName":         procexpect.ErrEmptyName,
		"ErrNameInUse":         procexpect.ErrNameInUse,
		"ErrSpawn":             procexpect.ErrSpawn,
		"ErrUnknownName":       procexpect.ErrUnknownName,
		"ErrUnsupportedSignal": procexpect.ErrUnsupportedSignal,
	}

	for name, sentinel := range allErrors {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if msg := sentinel.Error(); msg == "" {
				t.Errorf("%s.Error() returned empty string", name)
			}
			if !errors.Is(sentinel, sentinel) {
				t.Errorf("errors.Is(%s, %s) = false, want true (self-match)", name, name)
			}
			wrapped := fmt.Errorf("wrapping: %w", sentinel)
			if !errors.Is(wrapped, sentinel) {
				t.Errorf("errors.Is(wrapped %s) = false, want true", name)
			}
			if errors.Is(sentinel, errors.New("some other error")) {
				t.Errorf("errors.Is(%s, errors.New(...)) = true, want false", name)
			}
		})
	}
}

// TestPublicErrorConstantsAreDistinct verifies that no two exported error
// constants are equal to each other.
func TestPublicErrorConstantsAreDistinct(t *testing.T) {
	t.Parallel()

	named := []struct {
		name string
		err  error
	}{
		{"ErrEmptyArgv", procexpect.ErrEmptyArgv},
		{"ErrEmptyName", procexpect.ErrEmptyName},
		{"ErrNameInUse", procexpect.ErrNameInUse},
		{"ErrSpawn", procexpect.ErrSpawn},
		{"ErrUnknownName", procexpect.ErrUnknownName},
		{"ErrUnsupportedSignal", procexpect.ErrUnsupportedSignal},
	}

	for i, a := range named {
		for _, b := range named[i+1:] {
			if errors.Is(a.err, b.err) || errors.Is(b.err, a.err) {
				t.Errorf("%s and %s match each other: constants must be distinct", a.name, b.name)
			}
		}
	}
}
