package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBackupStoreContract runs a suite of tests to verify that a BackupStore
// implementation adheres to the defined interface contract.
func RunBackupStoreContract(t *testing.T, store BackupStore) {
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		b := &domain.Backup{Target: "win11", Kind: "cpu-pinning", Raw: "<domain type='kvm'/>\n", CreatedAt: created}

		path, err := store.Save(ctx, b)
		require.NoError(t, err, "Save should not return error")
		assert.NotEmpty(t, path)
		assert.Contains(t, path, "win11_cpu-pinning_")

		loaded, err := store.Load(ctx, path)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, b.Raw, loaded.Raw, "raw text must be preserved byte for byte")
		assert.Equal(t, "win11", loaded.Target)
		assert.Equal(t, "cpu-pinning", loaded.Kind)
		assert.Equal(t, path, loaded.Path)
		assert.True(t, created.Equal(loaded.CreatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing_kind_20000101T000000.000000000Z")
		assert.ErrorIs(t, err, domain.ErrBackupNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		path, err := store.Save(ctx, &domain.Backup{Target: "gone", Kind: "shmem", Raw: "x", CreatedAt: created})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, path), "Delete should not return error")
		_, err = store.Load(ctx, path)
		assert.ErrorIs(t, err, domain.ErrBackupNotFound, "Load after Delete should return ErrBackupNotFound")
		assert.NoError(t, store.Delete(ctx, path), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		older := &domain.Backup{Target: "listed", Kind: "memballoon", Raw: "a", CreatedAt: created}
		newer := &domain.Backup{Target: "listed", Kind: "memballoon", Raw: "b", CreatedAt: created.Add(time.Second)}
		other := &domain.Backup{Target: "other", Kind: "memballoon", Raw: "c", CreatedAt: created}
		for _, b := range []*domain.Backup{older, newer, other} {
			_, err := store.Save(ctx, b)
			require.NoError(t, err)
		}

		list, err := store.List(ctx, "listed")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].Raw, "newest first")
		assert.Equal(t, "a", list[1].Raw)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(all), 3)
	})
}

// RunJournalContract verifies that a Journal keeps every result, newest first.
func RunJournalContract(t *testing.T, journal Journal) {
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	results := []*domain.Result{
		{
			TxID: "tx-1", Target: "win11", Kind: "memballoon", Action: domain.ActionApply,
			Status: domain.StatusPartiallyPresent, Phase: domain.PhaseCommitted, Outcome: domain.OutcomeApplied,
			Edits:     []string{"RemoveNode /domain[1]/devices[1]/memballoon[1]", "InsertNode /domain[1]/devices[1] @3 <memballoon>"},
			StartedAt: started, FinishedAt: started.Add(time.Second),
		},
		{
			TxID: "tx-2", Target: "win11", Kind: "cpu-pinning", Action: domain.ActionApply,
			Status: domain.StatusAbsent, Phase: domain.PhaseRolledBack, Outcome: domain.OutcomeRolledBack,
			Code: domain.CodeVerificationMismatch, Err: domain.Errorf(domain.CodeVerificationMismatch, "cputune missing"),
			BackupPath: "/var/lib/vmtune/backups/win11_cpu-pinning_x",
			StartedAt:  started.Add(time.Minute), FinishedAt: started.Add(time.Minute + time.Second),
		},
		{
			TxID: "tx-3", Target: "/etc/default/grub", Kind: "isolation", Action: domain.ActionRemove,
			Status: domain.StatusSatisfied, Phase: domain.PhaseQueried, Outcome: domain.OutcomeUnchanged,
			StartedAt: started.Add(2 * time.Minute), FinishedAt: started.Add(2 * time.Minute),
		},
	}

	t.Run("Record", func(t *testing.T) {
		for _, r := range results {
			require.NoError(t, journal.Record(ctx, r))
		}
	})

	t.Run("History By Target", func(t *testing.T) {
		history, err := journal.History(ctx, "win11", 0)
		require.NoError(t, err)
		require.Len(t, history, 2)

		latest := history[0]
		assert.Equal(t, "tx-2", latest.TxID, "newest first")
		assert.Equal(t, domain.OutcomeRolledBack, latest.Outcome)
		assert.Equal(t, domain.CodeVerificationMismatch, latest.Code)
		assert.Equal(t, domain.PhaseRolledBack, latest.Phase)
		assert.Equal(t, "/var/lib/vmtune/backups/win11_cpu-pinning_x", latest.BackupPath)
		assert.Contains(t, latest.Error(), "cputune missing")
		assert.True(t, results[1].StartedAt.Equal(latest.StartedAt))

		assert.Equal(t, results[0].Edits, history[1].Edits)
		assert.Equal(t, domain.StatusPartiallyPresent, history[1].Status)
		assert.Empty(t, history[1].Error())
	})

	t.Run("History Limit", func(t *testing.T) {
		history, err := journal.History(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "tx-3", history[0].TxID)
		assert.Equal(t, domain.ActionRemove, history[0].Action)
	})
}
