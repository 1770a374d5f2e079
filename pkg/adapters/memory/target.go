package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
)

// DefineHook intercepts Define. call counts Define invocations from 1. A non-nil
// error rejects raw; the stored document is left unchanged.
type DefineHook func(ctx context.Context, call int, raw string) error

// ExportHook intercepts Export and may replace the returned text, e.g. to emulate
// a daemon that rewrites documents or loses writes.
type ExportHook func(ctx context.Context, call int, raw string) (string, error)

// Target implements ports.Target in memory, standing in for the management daemon
// or a boot parameter file in tests. Safe for concurrent use.
type Target struct {
	name string
	kind document.Kind
	key  string

	mu      sync.Mutex
	raw     string
	exists  bool
	defines int
	exports int
	history []string

	onDefine DefineHook
	onExport ExportHook
}

// NewDomain creates a target holding a domain descriptor.
func NewDomain(name, raw string) *Target {
	return &Target{name: name, kind: document.KindTree, raw: raw, exists: true}
}

// NewBootFile creates a target holding a boot parameter file edited through key.
func NewBootFile(name, key, raw string) *Target {
	return &Target{name: name, kind: document.KindParamLine, key: key, raw: raw, exists: true}
}

// NewMissing creates a target that does not exist yet; Export fails until Define.
func NewMissing(name string, kind document.Kind) *Target {
	return &Target{name: name, kind: kind}
}

func (t *Target) Name() string           { return t.name }
func (t *Target) DocKind() document.Kind { return t.kind }
func (t *Target) AssignmentKey() string  { return t.key }

// OnDefine installs a Define hook.
func (t *Target) OnDefine(h DefineHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDefine = h
}

// OnExport installs an Export hook.
func (t *Target) OnExport(h ExportHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExport = h
}

// Export returns the stored document.
func (t *Target) Export(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.exports++
	call, raw, exists, hook := t.exports, t.raw, t.exists, t.onExport
	t.mu.Unlock()

	if !exists {
		return "", fmt.Errorf("%w: %s", domain.ErrTargetNotFound, t.name)
	}
	if hook != nil {
		return hook(ctx, call, raw)
	}
	return raw, nil
}

// Define stores raw unless the hook rejects it.
func (t *Target) Define(ctx context.Context, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.defines++
	call, hook := t.defines, t.onDefine
	t.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call, raw); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRejected, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.raw, t.exists = raw, true
	t.history = append(t.history, raw)
	return nil
}

// Raw returns the stored document without going through Export.
func (t *Target) Raw() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raw
}

// Defines returns the number of Define calls, accepted or not.
func (t *Target) Defines() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.defines
}

// History returns every accepted document in order.
func (t *Target) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}
