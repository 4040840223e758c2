package procexpect

import (
	"github.com/giantswarm/procexpect/internal/core"
	"github.com/giantswarm/procexpect/internal/process"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrSpawn is returned by Spawn and Run when the program cannot be
	// started, typically because it is not installed.
	ErrSpawn = process.ErrSpawn

	// ErrEmptyName is returned by Spawn for an empty process name.
	ErrEmptyName = process.ErrEmptyName

	// ErrEmptyArgv is returned by Spawn and Run when no program is given.
	ErrEmptyArgv = process.ErrEmptyArgv

	// ErrNameInUse is returned by Spawn when a live process already has the
	// name.
	ErrNameInUse = core.ErrNameInUse

	// ErrUnknownName is returned by Kill, Signal and Capture for a name that
	// is neither live nor holding an unread exit code.
	ErrUnknownName = core.ErrUnknownName

	// ErrUnsupportedSignal is returned by Signal for an os.Signal that is
	// not a syscall.Signal.
	ErrUnsupportedSignal = core.ErrUnsupportedSignal
)
