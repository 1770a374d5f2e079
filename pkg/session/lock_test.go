package session

import (
	"context"
	"fmt"
	"testing"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	// 1. Lock many targets
	for i := 0; i < count; i++ {
		target := fmt.Sprintf("vm-%d", i)
		_ = mgr.WithLock(ctx, target, func(context.Context) error { return nil })
	}

	// 2. Count locks remaining in map
	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory", lockCount)
	}
}
