package daemon

import "fmt"

// State is a step in serving one connection.
type State int

const (
	StateAccepted State = iota
	StateReadingHeader
	StateReadingPayload
	StateDecoded
	StateRouted
	StateEncoding
	StateWritten
	StateClosed
	StateError
)

var stateNames = [...]string{
	StateAccepted:       "accepted",
	StateReadingHeader:  "reading_header",
	StateReadingPayload: "reading_payload",
	StateDecoded:        "decoded",
	StateRouted:         "routed",
	StateEncoding:       "encoding",
	StateWritten:        "written",
	StateClosed:         "closed",
	StateError:          "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
