package media

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes the external tool. The production implementation shells
// out; tests substitute one that fabricates output files.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

// NewRunner returns the subprocess-backed Runner. Arguments are always a
// discrete vector; nothing is ever interpolated into a shell string.
func NewRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
