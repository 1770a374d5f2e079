package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/vmtune/pkg/adapters/file"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements BackupStore
var _ ports.BackupStore = (*file.Store)(nil)

func TestStore_Contract(t *testing.T) {
	ports.RunBackupStoreContract(t, file.New(t.TempDir()))
}

func TestStore_NameAndLayout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	b := &domain.Backup{
		Target:    "my_vm",
		Kind:      "cpu-pinning",
		Raw:       "<domain/>",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
	}

	path, err := store.Save(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my_vm_cpu-pinning_20260102T030405.000000006Z"), path)
	assert.Equal(t, path, b.Path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Underscores in the target survive the round trip.
	loaded, err := store.Load(context.Background(), filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, "my_vm", loaded.Target)

	_, err = store.Save(context.Background(), b)
	assert.Error(t, err, "a backup is never overwritten")
}

func TestStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-x_y_z"), []byte("hi"), 0o644))

	list, err := file.New(dir).List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = file.New(filepath.Join(dir, "missing")).List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriteAtomic_KeepsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grub")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, file.WriteAtomic(path, []byte("new"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}
