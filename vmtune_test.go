package vmtune_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/vmtune"
	"github.com/aretw0/vmtune/internal/testutils"
	"github.com/aretw0/vmtune/pkg/adapters/memory"
	"github.com/aretw0/vmtune/pkg/adapters/redis"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/registry"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBackupDir(t *testing.T) {
	_, err := vmtune.New("")
	assert.Error(t, err)

	eng, err := vmtune.New(t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, eng.Kinds())
}

func TestEngine_FileBackupsAndJournal(t *testing.T) {
	journal := memory.NewJournal()
	eng, err := vmtune.New(t.TempDir(), vmtune.WithJournal(journal), vmtune.WithKeepBackups(true))
	require.NoError(t, err)
	ctx := context.Background()
	target := memory.NewDomain("win11", testutils.DomainXML)

	res, err := eng.Apply(ctx, target, registry.KindMemBalloon, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, res.Outcome)

	backups, err := eng.Backups(ctx, "win11")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, testutils.DomainXML, backups[0].Raw)
	assert.Equal(t, res.BackupPath, backups[0].Path)

	res, err = eng.Remove(ctx, target, registry.KindMemBalloon, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.NotContains(t, target.Raw(), "memballoon")

	status, err := eng.Status(ctx, target, registry.KindMemBalloon, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbsent, status.Status)

	restored, err := eng.Restore(ctx, target, backups[0].Path)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, restored.Outcome)
	assert.Equal(t, testutils.DomainXML, target.Raw())

	history, err := eng.History(ctx, "win11", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionRestore, history[0].Action)
	assert.Equal(t, domain.ActionRemove, history[1].Action)
}

func TestEngine_HistoryWithoutJournal(t *testing.T) {
	eng, err := vmtune.New("", vmtune.WithBackupStore(memory.NewStore()))
	require.NoError(t, err)
	_, err = eng.History(context.Background(), "", 0)
	assert.Error(t, err)
}

func TestEngine_DistributedLock(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	eng, err := vmtune.New("",
		vmtune.WithBackupStore(memory.NewStore()),
		vmtune.WithLocker(redis.NewLocker(client, "vmtune:"), time.Minute),
	)
	require.NoError(t, err)

	grub := memory.NewBootFile("grub", testutils.GrubKey, testutils.GrubDefault)
	res, err := eng.Apply(context.Background(), grub, registry.KindHugepageReservation, registry.Params{"count": 8})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Contains(t, grub.Raw(), `"quiet default_hugepagesz=1G hugepagesz=1G hugepages=8"`)
	assert.Empty(t, s.Keys(), "the lock is released after the transaction")
}

func TestEngine_CallTimeout(t *testing.T) {
	eng, err := vmtune.New("", vmtune.WithBackupStore(memory.NewStore()), vmtune.WithCallTimeout(10*time.Millisecond))
	require.NoError(t, err)

	target := memory.NewDomain("slow", testutils.DomainXML)
	target.OnExport(func(ctx context.Context, _ int, raw string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	res, err := eng.Apply(context.Background(), target, registry.KindShmem, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodePrecondition, res.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
