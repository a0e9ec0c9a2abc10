package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrDisabled is returned by a Command without arguments.
var ErrDisabled = errors.New("formatting disabled")

// DefaultTimeout bounds a single formatter run.
const DefaultTimeout = 10 * time.Second

// Formatter rewrites the text of the document at path.
type Formatter interface {
	Format(ctx context.Context, path, text string) (string, error)
}

// Command pipes the document through an external program, e.g.
// "dart format --output=show". Occurrences of "{path}" in Args are
// replaced with the document path.
type Command struct {
	Args    []string
	Timeout time.Duration
}

func NewCommand(args ...string) *Command {
	return &Command{Args: args, Timeout: DefaultTimeout}
}

func (c *Command) Enabled() bool {
	return c != nil && len(c.Args) > 0
}

func (c *Command) Format(ctx context.Context, path, text string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, "{path}", path)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", args[0], err)
		}
		return "", fmt.Errorf("%s: %s", args[0], msg)
	}
	out := stdout.String()
	if strings.TrimSpace(out) == "" && strings.TrimSpace(text) != "" {
		return "", fmt.Errorf("%s: empty output", args[0])
	}
	return out, nil
}

// Nop leaves text unchanged.
type Nop struct{}

func (Nop) Format(_ context.Context, _ string, text string) (string, error) {
	return text, nil
}
