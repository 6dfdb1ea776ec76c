// Package ipc exposes the running daemon over JSON-RPC on a Unix socket and
// ships the matching client used by the CLI.
//
// The socket lives in the runtime directory and carries control traffic only
// (status, stop, history, log tail). Clipboard payloads never travel over it.
package ipc
