package wire

import "errors"

var (
	// ErrDecode marks bytes that do not form a valid encoded value.
	ErrDecode = errors.New("wire: decode failed")
	// ErrInvalidFrame marks a framed header whose length is zero or above the limit.
	ErrInvalidFrame = errors.New("wire: invalid frame length")
	// ErrMessageTooLarge marks a legacy stream that grew past the limit.
	ErrMessageTooLarge = errors.New("wire: message too large")
	// ErrEmptyStream marks a peer that closed before sending a single byte.
	ErrEmptyStream = errors.New("wire: empty stream")
)
