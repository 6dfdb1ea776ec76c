package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrNoClipboardTool means none of the known clipboard commands is on PATH.
var ErrNoClipboardTool = errors.New("no clipboard command found")

const (
	commandTimeout = 5 * time.Second
	// commandWaitDelay bounds how long a finished tool may leave its output
	// pipes open. xclip and xsel fork a child that keeps serving the
	// selection and inherits stderr.
	commandWaitDelay = 500 * time.Millisecond
	stderrLimit      = 4 << 10
)

type candidate struct {
	name string
	args []string
}

func defaultCandidates() []candidate {
	candidates := []candidate{
		{name: "pbcopy"},
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	}
	if runtime.GOOS == "windows" {
		candidates = append([]candidate{{name: "clip"}}, candidates...)
	}
	return candidates
}

type resolved struct {
	path string
	args []string
}

// Command pipes text into an external clipboard tool. When several tools are
// installed they are tried in order and the first one that succeeds is kept
// at the front.
type Command struct {
	tools   []resolved
	timeout time.Duration
}

// DetectCommand resolves the platform clipboard tools available on PATH.
func DetectCommand() (*Command, error) {
	var tools []resolved
	for _, cand := range defaultCandidates() {
		path, err := exec.LookPath(cand.name)
		if err != nil {
			continue
		}
		tools = append(tools, resolved{path: path, args: cand.args})
	}
	if len(tools) == 0 {
		return nil, ErrNoClipboardTool
	}
	return &Command{tools: tools, timeout: commandTimeout}, nil
}

// NewCommand uses an explicit argv, for example ["xclip", "-selection", "primary"].
func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("clipboard command is empty")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("resolve clipboard command %q: %w", argv[0], err)
	}
	return &Command{tools: []resolved{{path: path, args: argv[1:]}}, timeout: commandTimeout}, nil
}

// SetText runs the clipboard tool with text on stdin.
func (c *Command) SetText(text string) error {
	var errs []error
	for i, tool := range c.tools {
		if err := c.run(tool, text); err != nil {
			errs = append(errs, err)
			continue
		}
		if i > 0 {
			c.tools[0], c.tools[i] = c.tools[i], c.tools[0]
		}
		return nil
	}
	return errors.Join(errs...)
}

func (c *Command) run(tool resolved, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tool.path, tool.args...)
	cmd.Stdin = strings.NewReader(text)
	stderr := &cappedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	cmd.WaitDelay = commandWaitDelay
	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The tool exited cleanly; only its background child holds stderr.
		err = nil
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", tool.path, err, detail)
		}
		return fmt.Errorf("%s: %w", tool.path, err)
	}
	return nil
}

// cappedBuffer keeps the first limit bytes written and drops the rest.
type cappedBuffer struct {
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		b.buf = append(b.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return string(b.buf) }

// Close is a no-op; each write starts its own process.
func (c *Command) Close() error { return nil }

// String names the preferred tool.
func (c *Command) String() string {
	if c == nil || len(c.tools) == 0 {
		return ""
	}
	return strings.Join(append([]string{c.tools[0].path}, c.tools[0].args...), " ")
}
