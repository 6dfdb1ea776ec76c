// Package daemon runs the clipboard relay daemon.
//
// Server owns the TCP accept loop and serves each connection in its own
// goroutine through a fixed sequence of states: the request is read in the
// sender's wire format, decoded, passed through the admission chain and the
// router, and answered with an ack in the same format before the connection is
// closed. Failures end only the affected connection and are logged with the
// state they occurred in.
//
// Daemon wraps a Server with single-instance locking (flock), status
// reporting, and the wiring between configuration, the clipboard sink, the
// relay forwarder, metrics, and the delivery journal.
package daemon
