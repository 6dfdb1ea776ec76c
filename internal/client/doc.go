// Package client sends clipboard requests to a relay daemon.
//
// Requests are always written in the framed format. Acks are read leniently
// so that older daemons, which answer in the legacy format or not at all,
// still count as successful deliveries.
package client
