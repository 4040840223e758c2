package core

import (
	"fmt"
	"log/slog"
	"slices"
	"syscall"

	"github.com/giantswarm/procexpect/internal/process"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrNameInUse is returned by Spawn when a live process already has the name.
const ErrNameInUse = sentinel.Error("process name already in use")

// ErrUnknownName is returned when an operation names a process that is
// neither live nor holding a pending exit code.
const ErrUnknownName = sentinel.Error("unknown process name")

// Registry owns every process handle of a session.
//
// A name is in at most one of two sets: live (spawned, output not yet at
// EOF) or pending (reaped, exit code not yet consumed). Consuming the code
// removes the name entirely, so each exit code is handed out once.
//
// Registry is not safe for concurrent use.
type Registry struct {
	live    map[string]*process.Handle
	order   []*process.Handle // live handles in spawn order, for round-robin
	pending map[string]*process.Handle
	spawn   process.SpawnConfig
	log     *slog.Logger
}

// NewRegistry creates an empty registry whose processes are launched with cfg.
func NewRegistry(cfg process.SpawnConfig, log *slog.Logger) *Registry {
	return &Registry{
		live:    make(map[string]*process.Handle),
		pending: make(map[string]*process.Handle),
		spawn:   cfg,
		log:     log,
	}
}

// Spawn starts argv under name and registers it as live. A name that still
// holds an unconsumed exit code loses that code.
func (r *Registry) Spawn(name string, argv []string) (*process.Handle, error) {
	if _, ok := r.live[name]; ok {
		return nil, fmt.Errorf("spawn %q: %w", name, ErrNameInUse)
	}
	h, err := process.Spawn(name, argv, r.spawn)
	if err != nil {
		return nil, err
	}
	if stale, ok := r.pending[name]; ok {
		code, _ := stale.Consume()
		delete(r.pending, name)
		r.log.Warn("discarding unconsumed exit code of respawned process",
			"process", name, "exit_code", code)
	}
	r.live[name] = h
	r.order = append(r.order, h)
	r.log.Debug("process spawned", "process", name, "pid", h.PID(), "argv", argv)
	return h, nil
}

// Signal sends sig to the process group of the live process name. It does
// not wait; the exit is observed by a later multiplexer read. Signalling a
// process whose exit code is pending is a no-op.
func (r *Registry) Signal(name string, sig syscall.Signal) error {
	h, ok := r.live[name]
	if !ok {
		if _, ok := r.pending[name]; ok {
			return nil
		}
		return fmt.Errorf("signal %q: %w", name, ErrUnknownName)
	}
	return h.Signal(sig)
}

// ExitCode returns and forgets the pending exit code of name. It reports
// false while the process is live, for unknown names, and on every call
// after the first.
func (r *Registry) ExitCode(name string) (int, bool) {
	h, ok := r.pending[name]
	if !ok {
		return 0, false
	}
	delete(r.pending, name)
	return h.Consume()
}

// Live reports whether any process is live when names is empty, or whether
// every one of names is live otherwise.
func (r *Registry) Live(names ...string) bool {
	if len(names) == 0 {
		return len(r.live) > 0
	}
	for _, name := range names {
		if _, ok := r.live[name]; !ok {
			return false
		}
	}
	return true
}

// Registered reports whether name is live or has a pending exit code.
func (r *Registry) Registered(name string) bool {
	_, live := r.live[name]
	_, pending := r.pending[name]
	return live || pending
}

// Handles returns the live handles in spawn order. The slice is shared with
// the registry and only valid until the next mutation.
func (r *Registry) Handles() []*process.Handle {
	return r.order
}

// Reaped moves h from the live set to the pending set. h must already be
// in process.StateReaped.
func (r *Registry) Reaped(h *process.Handle) {
	name := h.Name()
	if r.live[name] != h {
		return
	}
	delete(r.live, name)
	r.order = slices.DeleteFunc(r.order, func(o *process.Handle) bool { return o == h })
	r.pending[name] = h
}

// Reset empties the registry and returns the handles that were live, in
// spawn order. Pending exit codes are dropped.
func (r *Registry) Reset() []*process.Handle {
	live := r.order
	for name, h := range r.pending {
		h.Consume()
		delete(r.pending, name)
	}
	clear(r.live)
	r.order = nil
	return live
}
