package procexpect

import "time"

// ConfigSnapshot holds a copy of sessionConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	MaxLineSize    int
	ReapTimeout    time.Duration
	Dir            string
	Env            []string
	TranscriptDir  string
	HasDiscardFunc bool
}

// ApplyOptionsForTesting creates a default sessionConfig, applies the given
// options, and returns a ConfigSnapshot of the result.
func ApplyOptionsForTesting(opts ...SessionOption) ConfigSnapshot {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		MaxLineSize:    cfg.MaxLineSize,
		ReapTimeout:    cfg.ReapTimeout,
		Dir:            cfg.Dir,
		Env:            cfg.Env,
		TranscriptDir:  cfg.TranscriptDir,
		HasDiscardFunc: cfg.DiscardFunc != nil,
	}
}
