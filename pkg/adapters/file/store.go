package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/vmtune/pkg/domain"
)

// TimeLayout is the timestamp suffix of backup file names.
const TimeLayout = "20060102T150405.000000000Z"

// Store implements ports.BackupStore using the local filesystem.
// Backups are plain files named <target>_<kind>_<timestamp> holding the raw text.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to "/var/lib/vmtune/backups".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(string(filepath.Separator), "var", "lib", "vmtune", "backups")
	}
	return &Store{BasePath: basePath}
}

// Name returns the file name of a backup.
func Name(b *domain.Backup) string {
	return fmt.Sprintf("%s_%s_%s", sanitize(b.Target), b.Kind, b.CreatedAt.UTC().Format(TimeLayout))
}

// sanitize keeps target names usable as file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == filepath.Separator || r == 0 {
			return '-'
		}
		return r
	}, s)
}

// Save writes the raw text of b atomically. An existing backup with the same name
// is never overwritten.
func (s *Store) Save(ctx context.Context, b *domain.Backup) (string, error) {
	if b.Target == "" || b.Kind == "" {
		return "", fmt.Errorf("backup needs a target and a kind")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	// Ensure directory exists
	if err := os.MkdirAll(s.BasePath, 0o700); err != nil {
		return "", fmt.Errorf("failed to ensure backup directory: %w", err)
	}

	destPath := filepath.Join(s.BasePath, Name(b))
	if _, err := os.Stat(destPath); err == nil {
		return "", fmt.Errorf("backup %s already exists", destPath)
	}

	if err := WriteAtomic(destPath, []byte(b.Raw), 0o600); err != nil {
		return "", err
	}
	b.Path = destPath
	return destPath, nil
}

// WriteAtomic replaces path with data. It writes to a temporary file in the same
// directory, syncs it, and renames it over the destination, so readers observe
// either the old or the new content.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	// 1. Create Temp File on the same filesystem (required for atomic rename)
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+base+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Keep the permissions of an existing file
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	// 5. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 6. Atomic Rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// Load reads a backup. path may be absolute or a bare file name inside BasePath.
func (s *Store) Load(ctx context.Context, path string) (*domain.Backup, error) {
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(s.BasePath, path)
	}

	b, err := parseName(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, path)
		}
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	b.Raw = string(data)
	b.Path = path
	return b, nil
}

// Delete removes the backup file.
func (s *Store) Delete(ctx context.Context, path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// List returns the backups of target, newest first.
func (s *Store) List(ctx context.Context, target string) ([]domain.Backup, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.Backup{}, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var out []domain.Backup
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		meta, err := parseName(entry.Name())
		if err != nil {
			continue // not ours
		}
		if target != "" && meta.Target != sanitize(target) {
			continue
		}
		b, err := s.Load(ctx, filepath.Join(s.BasePath, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// parseName splits <target>_<kind>_<timestamp>. Targets may contain underscores;
// kinds and timestamps never do.
func parseName(name string) (*domain.Backup, error) {
	ts := strings.LastIndexByte(name, '_')
	if ts < 0 {
		return nil, fmt.Errorf("not a backup name: %s", name)
	}
	created, err := time.Parse(TimeLayout, name[ts+1:])
	if err != nil {
		return nil, fmt.Errorf("not a backup name: %s", name)
	}
	kind := strings.LastIndexByte(name[:ts], '_')
	if kind <= 0 {
		return nil, fmt.Errorf("not a backup name: %s", name)
	}
	return &domain.Backup{
		Target:    name[:kind],
		Kind:      name[kind+1 : ts],
		CreatedAt: created,
	}, nil
}
