package procexpect

import "github.com/giantswarm/procexpect/internal/core"

// sessionConfig holds configuration for a Session. This unexported type wraps
// core.SessionConfig via embedding, keeping internal/core types out of the
// public API signature.
type sessionConfig struct {
	core.SessionConfig
}

// defaultSessionConfig returns a sessionConfig with every default applied.
func defaultSessionConfig() sessionConfig {
	return sessionConfig{core.SessionConfig{
		MaxLineSize: DefaultMaxLineSize,
		ReapTimeout: DefaultReapTimeout,
	}}
}
