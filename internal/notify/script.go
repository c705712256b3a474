package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const defaultScriptTimeout = 60 * time.Second

// Script invokes a user-supplied external program with the notification
// title and body as its two arguments.
type Script struct {
	path    string
	timeout time.Duration
}

func NewScript(path string) *Script {
	return &Script{path: path, timeout: defaultScriptTimeout}
}

func (s *Script) Name() string { return "script" }

func (s *Script) Notify(ctx context.Context, title, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, title, body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w (output: %.200s)", s.path, err, out)
	}
	return nil
}
