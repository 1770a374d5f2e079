// Package virsh reaches the management daemon through the virsh command line tool.
// It is the fallback when the daemon socket cannot be used directly.
package virsh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/vmtune/pkg/adapters/process"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
)

const (
	// DefaultBinary is looked up in PATH.
	DefaultBinary = "virsh"

	cmdVirsh = "virsh"
)

// Target implements ports.Target for one domain via virsh.
type Target struct {
	domain string
	runner *process.Runner
}

// Option configures the Target.
type Option func(*config)

type config struct {
	binary string
	uri    string
}

// WithBinary sets the virsh executable.
func WithBinary(path string) Option {
	return func(c *config) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithURI sets the connection URI, e.g. qemu:///system.
func WithURI(uri string) Option {
	return func(c *config) {
		c.uri = uri
	}
}

// New creates a target for the named domain.
func New(domainName string, opts ...Option) *Target {
	c := config{binary: DefaultBinary}
	for _, opt := range opts {
		opt(&c)
	}

	var args []string
	if c.uri != "" {
		args = append(args, "--connect", c.uri)
	}
	runner := process.NewRunner(process.WithEnv("LC_ALL=C"))
	runner.Register(cmdVirsh, c.binary, args...)

	return &Target{domain: domainName, runner: runner}
}

func (t *Target) Name() string           { return t.domain }
func (t *Target) DocKind() document.Kind { return document.KindTree }
func (t *Target) AssignmentKey() string  { return "" }

// Export returns the inactive (persistent) definition.
func (t *Target) Export(ctx context.Context) (string, error) {
	out, err := t.runner.Run(ctx, cmdVirsh, nil, "dumpxml", "--inactive", t.domain)
	if err != nil {
		if notFound(out) {
			return "", fmt.Errorf("%w: %s", domain.ErrTargetNotFound, t.domain)
		}
		return "", err
	}
	return out.Stdout, nil
}

// Define submits raw with virsh define. virsh only reads definitions from files,
// so raw goes through a private temporary file.
func (t *Target) Define(ctx context.Context, raw string) error {
	tmp, err := os.CreateTemp("", "vmtune-"+t.domain+"-*.xml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.WriteString(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if _, err := t.runner.Run(ctx, cmdVirsh, nil, "define", tmp.Name()); err != nil {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %w", domain.ErrRejected, err)
		}
		return err
	}
	return nil
}

func notFound(out process.Output) bool {
	return strings.Contains(out.Stderr, "failed to get domain") ||
		strings.Contains(out.Stderr, "Domain not found")
}
