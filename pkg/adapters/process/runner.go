package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes local processes.
// It follows a Strict Registry pattern for security (Allow-Listing): only commands
// registered by name can be run, and callers may only append arguments.
type Runner struct {
	registry map[string]Command
	baseDir  string
	env      []string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from loaded configuration.
func WithRegistry(cmds map[string]Command) RunnerOption {
	return func(r *Runner) {
		for name, c := range cmds {
			r.Register(name, c.Command, c.Args...)
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the environment of every process.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = Command{
		Command: command,
		Args:    args,
	}
}

// Registered reports whether name is on the allow-list.
func (r *Runner) Registered(name string) bool {
	_, ok := r.registry[name]
	return ok
}

// Output is the captured result of a process.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a process ran but did not succeed.
type ExitError struct {
	Name   string
	Output Output
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.Output.ExitCode)
	if stderr := strings.TrimSpace(e.Output.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes the registered command name with extra arguments appended. stdin,
// when not nil, is fed to the process. Arguments are passed as argv entries, never
// through a shell.
func (r *Runner) Run(ctx context.Context, name string, stdin io.Reader, extra ...string) (Output, error) {
	proc, ok := r.registry[name]
	if !ok {
		return Output{}, fmt.Errorf("process not registered: %s", name)
	}

	args := append(append([]string(nil), proc.Args...), extra...)
	cmd := exec.CommandContext(ctx, proc.Command, args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = stdin
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}

	// Capture Output
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, &ExitError{Name: name, Output: out, Err: err}
	}
	return out, fmt.Errorf("failed to start %s: %w", name, err)
}
