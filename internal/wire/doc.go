// Package wire implements the clipboard relay protocol: the Message and Ack
// values exchanged between clients and daemons, their compact binary
// encoding, and the two stream framings in use on the network.
//
// Three generations of peers are deployed. The oldest writes a bare Legacy
// message and closes its write side; the next adds token-bearing Ping and Set
// variants; the newest wraps every value in a length-prefixed "SCB1" frame.
// ReadHeader sniffs the first four bytes of a stream once and decides which
// framing applies, so a daemon built on this package answers all three.
//
// The byte layout is fixed by peers that are already in the field. Do not
// reorder variants or fields.
package wire
