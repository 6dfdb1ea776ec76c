package wire

import "fmt"

// DefaultMaxBytes bounds a single request or ack payload.
const DefaultMaxBytes = 160 * 1024 * 1024

// Kind identifies a Message variant. The numeric values are the on-wire tags.
type Kind uint32

const (
	KindPing   Kind = 0
	KindSet    Kind = 1
	KindLegacy Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindSet:
		return "set"
	case KindLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Message is a client request. Text is unused for Ping; Token is never
// encoded for Legacy.
type Message struct {
	Kind  Kind
	Text  string
	Token *string
}

// Ping builds a liveness check.
func Ping(token *string) Message {
	return Message{Kind: KindPing, Token: token}
}

// Set builds a token-bearing clipboard write.
func Set(text string, token *string) Message {
	return Message{Kind: KindSet, Text: text, Token: token}
}

// Legacy builds the oldest clipboard write, which carries no token.
func Legacy(text string) Message {
	return Message{Kind: KindLegacy, Text: text}
}

// OptionalString returns nil for an empty string and a pointer to s otherwise.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Reason codes carried in Ack.Detail.
const (
	DetailPingOK                   = "ping_ok"
	DetailTokenRejected            = "token_rejected"
	DetailForwarded                = "forwarded"
	DetailForwardFailedFallbackOK  = "forward_failed_fallback_ok"
	DetailForwardFailedFallbackErr = "forward_failed_fallback_err"
	DetailLocalSetOK               = "local_set_ok"
	DetailLocalSetErr              = "local_set_err"
)

// Ack is the daemon's reply to a Message.
type Ack struct {
	OK     bool
	Detail *string
}

// NewAck builds an Ack with a reason code.
func NewAck(ok bool, detail string) Ack {
	return Ack{OK: ok, Detail: &detail}
}

// DetailString returns the reason code or an empty string when absent.
func (a Ack) DetailString() string {
	if a.Detail == nil {
		return ""
	}
	return *a.Detail
}
