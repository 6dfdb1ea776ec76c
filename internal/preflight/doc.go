// Package preflight checks that a host can run the simpleclipboard daemon.
//
// `simpleclipboard doctor` prints every check; `simpleclipboard status` shows
// them next to the daemon state when the daemon is offline. A failed
// Optional check is a warning: the daemon still starts and falls back where
// it can (an unreachable next hop falls back to the local clipboard).
package preflight
