// Package bcc runs the pgbouncer bcc consistency check: pgbouncer forwards
// every write to a primary and a secondary postgres server, pgbench loads it
// for a while, and afterwards the pgbench_history tables of both servers
// must be identical.
//
// The package is a client of procexpect. The steps are exported separately
// (InitDBs, StartPostgres, StartPgbouncer, Pgbench, EqualResults) so
// integration tests can assemble variants of the workflow; Run performs the
// whole check and returns a Report.
package bcc
