package ports

import (
	"context"

	"github.com/aretw0/vmtune/pkg/domain"
)

// BackupStore persists backups. Backups are never pruned automatically.
type BackupStore interface {
	// Save persists b and returns the location it can be loaded from.
	Save(ctx context.Context, b *domain.Backup) (string, error)

	// Load retrieves a backup by location.
	// Returns domain.ErrBackupNotFound if it does not exist.
	Load(ctx context.Context, path string) (*domain.Backup, error)

	// Delete removes a backup. Deleting a missing backup is not an error.
	Delete(ctx context.Context, path string) error

	// List returns the backups of target (all targets when empty), newest first.
	List(ctx context.Context, target string) ([]domain.Backup, error)
}

// Journal records the outcome of every reconciliation.
type Journal interface {
	Record(ctx context.Context, r *domain.Result) error

	// History returns up to limit results for target (all targets when empty), newest first.
	History(ctx context.Context, target string, limit int) ([]domain.Result, error)
}
