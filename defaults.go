package procexpect

import "time"

// Default configuration values for New.
const (
	// DefaultMaxLineSize is the longest line returned before a run of
	// output without a newline is split.
	DefaultMaxLineSize = 1 << 20

	// DefaultReapTimeout is how long Finish waits for each killed process.
	// SIGKILL cannot be caught, so this only has to cover the kernel
	// tearing the process down.
	DefaultReapTimeout = 10 * time.Second
)
