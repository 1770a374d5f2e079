package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/vmtune/pkg/domain"
)

// Journal implements ports.Journal in memory.
type Journal struct {
	mu      sync.RWMutex
	results []domain.Result
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends a copy of r.
func (j *Journal) Record(ctx context.Context, r *domain.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	c := *r
	c.Edits = append([]string(nil), r.Edits...)
	j.results = append(j.results, c)
	return nil
}

// History returns up to limit results for target, newest first. limit <= 0 means all.
func (j *Journal) History(ctx context.Context, target string, limit int) ([]domain.Result, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []domain.Result
	for _, r := range j.results {
		if target == "" || r.Target == target {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
