package router

import (
	"crypto/subtle"

	"simpleclipboard/internal/wire"
)

// Effect is the side effect a routing decision asks for.
type Effect int

const (
	// EffectNone means the ack is final and nothing else happens.
	EffectNone Effect = iota
	// EffectRelay forwards the text and falls back to the local clipboard.
	EffectRelay
	// EffectLocal writes the text to the local clipboard.
	EffectLocal
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectRelay:
		return "relay"
	case EffectLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Policy is the daemon's routing configuration.
type Policy struct {
	// Token, when non-empty, must match the token carried by Ping and Set.
	Token string
	// RelayAddr, when non-empty, is the next daemon in the chain.
	RelayAddr string
}

// TokenRequired reports whether Ping and Set must carry a token.
func (p Policy) TokenRequired() bool { return p.Token != "" }

// Relaying reports whether writes are forwarded before touching the local clipboard.
func (p Policy) Relaying() bool { return p.RelayAddr != "" }

func (p Policy) tokenAccepted(provided *string) bool {
	if !p.TokenRequired() {
		return true
	}
	if provided == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*provided), []byte(p.Token)) == 1
}

// Decision is the outcome of Route. Ack is only meaningful for EffectNone.
type Decision struct {
	Effect Effect
	Text   string
	Ack    wire.Ack
}

// Route decides what to do with msg. It performs no I/O.
//
// Legacy messages are never token-checked: they come from the oldest
// clients and from upstream relays, neither of which can carry a token.
func Route(msg wire.Message, p Policy) Decision {
	switch msg.Kind {
	case wire.KindPing:
		if !p.tokenAccepted(msg.Token) {
			return Decision{Ack: wire.NewAck(false, wire.DetailTokenRejected)}
		}
		return Decision{Ack: wire.NewAck(true, wire.DetailPingOK)}
	case wire.KindSet:
		if !p.tokenAccepted(msg.Token) {
			return Decision{Ack: wire.NewAck(false, wire.DetailTokenRejected)}
		}
	}
	if p.Relaying() {
		return Decision{Effect: EffectRelay, Text: msg.Text}
	}
	return Decision{Effect: EffectLocal, Text: msg.Text}
}

// RelayOutcome maps the result of a relay attempt, and of the local fallback
// when the relay failed, to an ack. A successful fallback still reports
// ok=false so the caller learns the relay hop is broken.
func RelayOutcome(forwarded, localOK bool) wire.Ack {
	switch {
	case forwarded:
		return wire.NewAck(true, wire.DetailForwarded)
	case localOK:
		return wire.NewAck(false, wire.DetailForwardFailedFallbackOK)
	default:
		return wire.NewAck(false, wire.DetailForwardFailedFallbackErr)
	}
}

// LocalOutcome maps a local clipboard write to an ack.
func LocalOutcome(ok bool) wire.Ack {
	if ok {
		return wire.NewAck(true, wire.DetailLocalSetOK)
	}
	return wire.NewAck(false, wire.DetailLocalSetErr)
}
