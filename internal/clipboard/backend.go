package clipboard

import (
	"fmt"
	"strings"
)

// Backend kinds accepted by NewOpener.
const (
	KindAuto    = "auto"
	KindCommand = "command"
	KindMemory  = "memory"
)

// NewOpener returns an Opener for the configured backend kind. An empty kind
// selects auto detection unless argv is set.
func NewOpener(kind string, argv []string) (Opener, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = KindAuto
		if len(argv) > 0 {
			kind = KindCommand
		}
	}
	switch kind {
	case KindAuto:
		return func() (Backend, error) { return DetectCommand() }, nil
	case KindCommand:
		if len(argv) == 0 {
			return nil, fmt.Errorf("clipboard backend %q requires a command", kind)
		}
		cmd := append([]string(nil), argv...)
		return func() (Backend, error) { return NewCommand(cmd) }, nil
	case KindMemory:
		return NewMemory().Opener(), nil
	default:
		return nil, fmt.Errorf("unsupported clipboard backend %q", kind)
	}
}
