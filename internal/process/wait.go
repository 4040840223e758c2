package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/procexpect/internal/sentinel"
)

// Errors returned by WaitReady.
const (
	ErrEmptyName     = sentinel.Error("readiness wait needs a name")
	ErrBadInterval   = sentinel.Error("probe interval must be positive")
	ErrBadTimeout    = sentinel.Error("readiness timeout must be positive")
	ErrProcessExited = sentinel.Error("process exited before becoming ready")
)

// ProbeFunc reports whether a daemon is ready. attempt counts from 1. An
// error ends the wait at once.
type ProbeFunc func(ctx context.Context, attempt int) (bool, error)

// ReadyConfig describes one readiness wait.
type ReadyConfig struct {
	Name     string
	Port     int
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger

	// Exited is checked before each probe. Once it reports true the wait
	// ends with ErrProcessExited.
	Exited func() bool
}

// WaitReady probes immediately and then every Interval until probe reports
// ready, Timeout passes or ctx is done.
func WaitReady(ctx context.Context, cfg ReadyConfig, probe ProbeFunc) error {
	switch {
	case cfg.Name == "":
		return ErrEmptyName
	case cfg.Interval <= 0:
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrBadInterval)
	case cfg.Timeout <= 0:
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrBadTimeout)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("process", cfg.Name, "port", cfg.Port)

	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true, func(ctx context.Context) (bool, error) {
		if cfg.Exited != nil && cfg.Exited() {
			return false, ErrProcessExited
		}
		attempt++
		ready, err := probe(ctx, attempt)
		if err != nil {
			return false, err
		}
		if ready {
			log.Debug("ready", "attempts", attempt)
		}
		return ready, nil
	})
	if err != nil {
		return fmt.Errorf("%s on port %d not ready after %d probes: %w", cfg.Name, cfg.Port, attempt, err)
	}
	return nil
}
