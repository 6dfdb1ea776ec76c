// Package logs reads the daemon log file for `simpleclipboard logs`.
//
// Tail returns either the last N lines (negative offset) or everything written
// after a byte offset, and can poll briefly for new lines so the CLI can
// follow the file across repeated calls.
package logs
