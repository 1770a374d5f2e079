package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/vmtune/pkg/domain"
)

// Store implements ports.BackupStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Backup
	mu   sync.RWMutex
}

// NewStore creates a new in-memory backup store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Backup),
	}
}

// Save keeps a copy of b.
func (s *Store) Save(ctx context.Context, b *domain.Backup) (string, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	path := fmt.Sprintf("%s_%s_%s", b.Target, b.Kind, b.CreatedAt.UTC().Format("20060102T150405.000000000Z"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[path]; exists {
		return "", fmt.Errorf("backup %s already exists", path)
	}
	b.Path = path
	s.data[path] = *b
	return path, nil
}

// Load retrieves a copy of the backup.
func (s *Store) Load(ctx context.Context, path string) (*domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, path)
	}
	return &b, nil
}

// Delete removes the backup.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	return nil
}

// List returns the backups of target, newest first.
func (s *Store) List(ctx context.Context, target string) ([]domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Backup, 0, len(s.data))
	for _, b := range s.data {
		if target == "" || b.Target == target {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Path > out[j].Path
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
