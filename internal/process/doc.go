// Package process spawns named child processes whose stdout and stderr are
// merged into a single pipe, and provides the primitives the multiplexer is
// built from: a Poller that waits for readiness across many raw pipe
// descriptors, line framing over non-blocking reads, reaping with an
// explicit Live → Reaped → Consumed exit state, and process-group signalling.
//
// It also provides WaitReady for polling-based readiness checks of
// network-facing daemons.
//
// Nothing in this package is safe for concurrent use; the owning
// core.Session serialises all access on a single control thread.
package process
