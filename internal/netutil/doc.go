// Package netutil provides the network helpers bcctest needs around its
// postgres and pgbouncer daemons.
//
// PortRegistry hands out distinct ephemeral ports by holding every listener
// open until the whole batch is allocated, and remembers them so a later
// batch in the same run cannot receive one again. ProbeTCP is the readiness
// check used once a daemon claims to be listening.
package netutil
