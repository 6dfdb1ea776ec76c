package client

import (
	"errors"
	"fmt"
	"strings"

	"simpleclipboard/internal/wire"
)

// Action selects the message a Request produces.
type Action string

const (
	ActionPing   Action = "ping"
	ActionSet    Action = "set"
	ActionLegacy Action = "legacy"
)

// ErrInvalidPayload reports an editor payload that cannot be parsed.
var ErrInvalidPayload = errors.New("invalid payload")

const payloadSeparator = "\x01"

// Request is one clipboard call. Token is ignored for legacy requests and an
// empty Token is sent as absent.
type Request struct {
	Action Action
	Text   string
	Token  string
}

// Legacy builds the single-text call shape used by the oldest editors.
func Legacy(text string) Request {
	return Request{Action: ActionLegacy, Text: text}
}

// Set builds a token-carrying clipboard write.
func Set(text, token string) Request {
	return Request{Action: ActionSet, Text: text, Token: token}
}

// Ping builds a reachability and token check.
func Ping(token string) Request {
	return Request{Action: ActionPing, Token: token}
}

// Message converts r to its wire form.
func (r Request) Message() (wire.Message, error) {
	switch r.Action {
	case ActionPing:
		return wire.Ping(wire.OptionalString(r.Token)), nil
	case ActionSet:
		return wire.Set(r.Text, wire.OptionalString(r.Token)), nil
	case ActionLegacy, "":
		return wire.Legacy(r.Text), nil
	default:
		return wire.Message{}, fmt.Errorf("unknown action %q", r.Action)
	}
}

// ParsePayload splits an editor bridge payload into an address and request.
//
//	addr\x01text                 legacy
//	addr\x01set\x01text[\x01tok] set
//	addr\x01ping\x01\x01[tok]    ping
func ParsePayload(payload string) (string, Request, error) {
	parts := strings.Split(payload, payloadSeparator)
	if len(parts) < 2 {
		return "", Request{}, fmt.Errorf("%w: expected address and text", ErrInvalidPayload)
	}
	address := parts[0]
	if len(parts) == 2 {
		return address, Legacy(parts[1]), nil
	}

	var text, token string
	if len(parts) >= 3 {
		text = parts[2]
	}
	if len(parts) >= 4 {
		token = parts[3]
	}
	switch Action(parts[1]) {
	case ActionPing:
		return address, Ping(token), nil
	case ActionSet:
		return address, Set(text, token), nil
	default:
		return "", Request{}, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, parts[1])
	}
}
