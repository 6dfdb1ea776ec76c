// Package main hosts the simpleclipboard CLI: the editor-facing send
// commands, daemon lifecycle commands, and journal/log inspection.
//
// Send commands talk to a daemon over TCP with the clipboard wire protocol.
// Lifecycle and inspection commands use the control socket in the runtime
// directory. `simpleclipboard daemon` (hidden) is the process that `start`
// launches.
package main
