// Package lock provides a host-wide exclusive lock backed by flock(2).
//
// bcctest holds it for the whole run because the benchmark binds fixed ports
// and edits the host firewall; two concurrent runs would corrupt each other.
package lock
