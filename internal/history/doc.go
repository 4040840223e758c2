// Package history records bcctest runs in a small sqlite database so that
// flaky consistency failures can be told apart from regressions.
package history
