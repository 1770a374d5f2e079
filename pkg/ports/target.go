package ports

import (
	"context"

	"github.com/aretw0/vmtune/pkg/document"
)

// Target is a configuration document owned by an external system.
type Target interface {
	// Name identifies the target (domain name, or boot file label). It is the lock key
	// and the first component of backup names.
	Name() string

	// DocKind is the document kind Export returns.
	DocKind() document.Kind

	// AssignmentKey is the variable holding the boot parameters of a
	// document.KindParamLine target, empty for domain descriptors.
	AssignmentKey() string

	// Export returns the current raw text. A missing target wraps domain.ErrTargetNotFound.
	Export(ctx context.Context) (string, error)

	// Define makes raw the active document: the daemon's define call, or a file write
	// followed by the bootloader regeneration. A refusal wraps domain.ErrRejected.
	// Define is a single call; there is no partially applied state.
	Define(ctx context.Context, raw string) error
}
