package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/vmtune/pkg/adapters/sqlite"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Journal = (*sqlite.Journal)(nil)

func TestJournal_Contract(t *testing.T) {
	j, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	ports.RunJournalContract(t, j)
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.db")
	ctx := context.Background()
	now := time.Now()

	j, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, &domain.Result{
		TxID: "tx-1", Target: "win11", Kind: "shmem", Action: domain.ActionApply,
		Outcome: domain.OutcomeApplied, StartedAt: now, FinishedAt: now,
	}))
	require.NoError(t, j.Close())

	j, err = sqlite.Open(path)
	require.NoError(t, err)
	defer j.Close()

	history, err := j.History(ctx, "win11", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "shmem", history[0].Kind)
	assert.Empty(t, history[0].Edits)
}

func TestJournal_RejectsDuplicatesAndMissingIDs(t *testing.T) {
	j, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	r := &domain.Result{TxID: "tx-1", Target: "win11", Kind: "shmem", Outcome: domain.OutcomeUnchanged}
	require.NoError(t, j.Record(ctx, r))
	assert.Error(t, j.Record(ctx, r), "rows are append-only")

	assert.Error(t, j.Record(ctx, &domain.Result{Target: "win11"}))
}
