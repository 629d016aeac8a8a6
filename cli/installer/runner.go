package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrInstallFailed is returned when the package installer exits unsuccessfully
var ErrInstallFailed = errors.New("package install failed")

// Command is one packager invocation
type Command struct {
	// Name is the executable, npm or yarn
	Name string `json:"name"`
	// Args follow the executable
	Args []string `json:"args"`
	// Env holds KEY=VALUE pairs that replace inherited values
	Env []string `json:"env,omitempty"`
	// Dir is the working directory, always a layer's nodejs folder
	Dir string `json:"dir"`
}

// String renders the command the way it would be typed in a shell
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Runner executes packager commands
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes with inherited stdio
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...) //nolint:gosec // packager is validated in config
	cmd.Dir = c.Dir

	names := make([]string, 0, len(c.Env))
	for _, kv := range c.Env {
		if name, _, ok := strings.Cut(kv, "="); ok {
			names = append(names, name)
		}
	}
	cmd.Env = append(filterEnvVars(os.Environ(), names...), c.Env...)

	cmd.Stdin = r.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %q exited with code %d", ErrInstallFailed, c.String(), exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %q: %v", ErrInstallFailed, c.String(), err)
	}
	return nil
}

// filterEnvVars returns a copy of env with the specified variable names removed
func filterEnvVars(env []string, names ...string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		skip := false
		for _, name := range names {
			if strings.HasPrefix(e, name+"=") {
				skip = true
				break
			}
		}
		if !skip {
			result = append(result, e)
		}
	}
	return result
}
