// Package clipboard owns the host clipboard on behalf of the daemon.
//
// The OS clipboard is a shared resource that tolerates a single writer at a
// time, so every write goes through one Guarded value. Guarded opens its
// Backend lazily, holds a mutex for the whole write, and reopens the backend
// once when a write fails. Command shells out to the platform clipboard tool;
// Memory keeps writes in process for relay-only hosts and tests.
package clipboard
