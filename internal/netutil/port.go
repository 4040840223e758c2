package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// maxPortRetries is the maximum number of attempts to find a port not already
// in the registry. This guards against pathological cases.
const maxPortRetries = 20

// PortRegistry tracks ports reserved by this process. Ports configured
// explicitly are registered with Reserve so that ephemeral allocations
// cannot collide with them.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a new PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// Reserve registers port and reports whether it was free in the registry.
func (r *PortRegistry) Reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes ports from the registry, allowing them to be reused.
func (r *PortRegistry) Release(ports ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ports {
		delete(r.ports, p)
	}
}

// Reserved reports whether port is currently in the registry.
func (r *PortRegistry) Reserved(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ports[port]
	return ok
}

// listenFree asks the kernel for a free loopback port, skipping ports already
// in the registry. On success the port is registered and its listener is
// returned still open; the caller closes it.
func (r *PortRegistry) listenFree() (*net.TCPListener, int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for range maxPortRetries {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen on tcp address: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return nil, 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		if r.Reserve(tcpAddr.Port) {
			return l, tcpAddr.Port, nil
		}
		r.log.Debug("port already in registry, retrying", "port", tcpAddr.Port)
		_ = l.Close()
	}
	return nil, 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}

// AllocatePorts allocates n distinct free ports.
//
// All listeners stay open until the last port is allocated, so the kernel
// cannot hand out the same port twice within the batch. On failure every
// port of the batch is released again. Callers must Release the returned
// ports when no longer needed.
func (r *PortRegistry) AllocatePorts(n int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocate ports: count must be positive, got %d", n)
	}

	listeners := make([]*net.TCPListener, 0, n)
	ports := make([]int, 0, n)
	closeAll := func() {
		// Close listeners BEFORE releasing their ports from the registry,
		// or another caller could be handed a port that is still bound.
		for i, l := range listeners {
			if err := l.Close(); err != nil {
				r.log.Warn("close listener after port allocation", "port", ports[i], "error", err)
			}
		}
	}

	for i := range n {
		l, p, err := r.listenFree()
		if err != nil {
			closeAll()
			r.Release(ports...)
			return nil, fmt.Errorf("allocate port %d of %d: %w", i+1, n, err)
		}
		listeners = append(listeners, l)
		ports = append(ports, p)
	}

	closeAll()
	return ports, nil
}
