// Package journal records the outcome of every request the daemon answers in
// a local SQLite database. Entries carry the request id, message kind, text
// size, ack detail, wire format, and peer address. Clipboard text itself is
// never stored.
package journal
