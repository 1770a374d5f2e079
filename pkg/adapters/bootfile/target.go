// Package bootfile exposes a boot parameter file (e.g. /etc/default/grub) as a
// reconciliation target. Define writes the file atomically and then runs the
// bootloader's regenerate command, so the new parameters reach the boot menu.
package bootfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aretw0/vmtune/pkg/adapters/file"
	"github.com/aretw0/vmtune/pkg/adapters/process"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
)

const (
	// DefaultPath is the GRUB defaults file.
	DefaultPath = "/etc/default/grub"
	// DefaultKey is the assignment edited in DefaultPath.
	DefaultKey = "GRUB_CMDLINE_LINUX_DEFAULT"

	regenerate = "regenerate"
)

// Target implements ports.Target for a boot parameter file.
type Target struct {
	path   string
	key    string
	runner *process.Runner
}

// Option configures the Target.
type Option func(*Target)

// WithKey sets the assignment key holding the parameters.
func WithKey(key string) Option {
	return func(t *Target) {
		if key != "" {
			t.key = key
		}
	}
}

// WithRegenerate sets the command run after every write. Without one, Define only
// writes the file.
func WithRegenerate(cmd process.Command) Option {
	return func(t *Target) {
		if !cmd.IsZero() {
			t.runner.Register(regenerate, cmd.Command, cmd.Args...)
		}
	}
}

// New creates a boot file target for path.
func New(path string, opts ...Option) *Target {
	if path == "" {
		path = DefaultPath
	}
	t := &Target{
		path:   path,
		key:    DefaultKey,
		runner: process.NewRunner(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Target) Name() string           { return t.path }
func (t *Target) DocKind() document.Kind { return document.KindParamLine }
func (t *Target) AssignmentKey() string  { return t.key }

// Export reads the file.
func (t *Target) Export(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrTargetNotFound, t.path)
		}
		return "", fmt.Errorf("failed to read %s: %w", t.path, err)
	}
	return string(data), nil
}

// Define replaces the file with raw and regenerates the boot configuration.
// A failing regenerate command rejects the candidate.
func (t *Target) Define(ctx context.Context, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := file.WriteAtomic(t.path, []byte(raw), 0o644); err != nil {
		return err
	}
	if !t.runner.Registered(regenerate) {
		return nil
	}

	if _, err := t.runner.Run(ctx, regenerate, nil); err != nil {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %w", domain.ErrRejected, err)
		}
		return err
	}
	return nil
}
