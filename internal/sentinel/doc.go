// Package sentinel provides an immutable error type for sentinel error declarations.
//
// Error is a string-based error type that can be declared as a const, so the
// procexpect error values (ErrUnknownName, ErrSpawn, ...) cannot be reassigned
// by importers while still matching through wrapped chains with errors.Is.
package sentinel
