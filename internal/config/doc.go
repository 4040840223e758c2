// Package config holds the bcctest configuration: where the two postgres
// backends and pgbouncer listen, which binaries to run, how long to bench,
// and where results go. It is read from a TOML file on top of Default and
// then overridden by command-line flags.
package config
