package memory_test

import (
	"testing"

	"github.com/aretw0/vmtune/pkg/adapters/memory"
	"github.com/aretw0/vmtune/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunBackupStoreContract(t, store)
}
