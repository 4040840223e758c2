// Package fileutil provides file operation utilities for directory and file management.
//
// EnsureDir creates directories recursively. WriteFile and CopyFile write
// files through a temp file in the destination directory followed by a
// rename, so a reader never observes a partially written pgbouncer config or
// output dump. Transcripts, the run lock and bcctest output all rely on it.
package fileutil
