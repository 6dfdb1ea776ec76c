// Package router decides what a daemon does with each decoded message.
//
// Route is a pure function of the message and the daemon Policy: it checks
// the token, chooses between relaying and writing the local clipboard, and
// for Ping or a rejected token produces the final ack directly. Dispatcher
// carries out the chosen effect and maps its result back to an ack with
// RelayOutcome or LocalOutcome.
package router
