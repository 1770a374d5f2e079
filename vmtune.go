package vmtune

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/vmtune/internal/logging"
	"github.com/aretw0/vmtune/internal/runtime"
	"github.com/aretw0/vmtune/pkg/adapters/file"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/aretw0/vmtune/pkg/session"
)

// Request asks for one reconciliation of a fragment kind on a target.
type Request = runtime.Request

// Engine is the high-level entry point for the vmtune library.
// It wraps the internal transaction manager and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	registry    *registry.Registry
	backups     ports.BackupStore
	journal     ports.Journal
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	callTimeout time.Duration
	keepBackups bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRegistry replaces the built-in fragment catalog.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithBackupStore injects a custom BackupStore, bypassing the default file store.
func WithBackupStore(s ports.BackupStore) Option {
	return func(e *Engine) {
		e.backups = s
	}
}

// WithJournal records the result of every apply, remove and restore.
func WithJournal(j ports.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLocker serializes transactions across processes. ttl bounds how long a
// crashed holder blocks others; zero keeps session.DefaultTTL.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker, e.lockTTL = l, ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCallTimeout bounds every Export, Define and regenerate call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithKeepBackups keeps backups after a successful commit.
func WithKeepBackups(keep bool) Option {
	return func(e *Engine) {
		e.keepBackups = keep
	}
}

// New initializes a new Engine.
// By default backups are files in backupDir.
// If WithBackupStore is provided, backupDir can be empty.
func New(backupDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	// Apply Options first to check if a store is provided
	for _, opt := range opts {
		opt(eng)
	}

	if eng.backups == nil {
		if backupDir == "" {
			return nil, fmt.Errorf("backupDir is required when no custom backup store is provided")
		}
		absPath, err := filepath.Abs(backupDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.backups = file.New(absPath)
	}
	if eng.registry == nil {
		eng.registry = registry.Default()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	locks := session.NewManager(
		session.WithLocker(eng.locker),
		session.WithTTL(eng.lockTTL),
		session.WithLogger(eng.logger),
	)
	runtimeOpts := []runtime.Option{
		runtime.WithLocks(locks),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithKeepBackups(eng.keepBackups),
	}
	if eng.journal != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithJournal(eng.journal))
	}
	if eng.callTimeout > 0 {
		runtimeOpts = append(runtimeOpts, runtime.WithCallTimeout(eng.callTimeout))
	}

	eng.runtime = runtime.NewEngine(eng.registry, eng.backups, runtimeOpts...)
	return eng, nil
}

// Reconcile runs one transaction. The Result is always non-nil; the error is its Err.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*domain.Result, error) {
	return e.runtime.Reconcile(ctx, req)
}

// Apply makes the fragment of kind present on target.
func (e *Engine) Apply(ctx context.Context, target ports.Target, kind string, params registry.Params) (*domain.Result, error) {
	return e.runtime.Reconcile(ctx, Request{Target: target, Kind: kind, Action: domain.ActionApply, Params: params})
}

// Remove makes the fragment of kind absent from target.
func (e *Engine) Remove(ctx context.Context, target ports.Target, kind string, params registry.Params) (*domain.Result, error) {
	return e.runtime.Reconcile(ctx, Request{Target: target, Kind: kind, Action: domain.ActionRemove, Params: params})
}

// Status compares target with the fragment of kind without writing anything.
func (e *Engine) Status(ctx context.Context, target ports.Target, kind string, params registry.Params) (*domain.Result, error) {
	return e.runtime.Status(ctx, target, kind, params)
}

// StatusAll runs Status for every kind that edits the target's document type.
// params holds per-kind params; kinds without an entry use their defaults.
func (e *Engine) StatusAll(ctx context.Context, target ports.Target, params map[string]registry.Params) []*domain.Result {
	return e.runtime.StatusAll(ctx, target, params)
}

// Restore puts the text of a backup back on target.
func (e *Engine) Restore(ctx context.Context, target ports.Target, backupPath string) (*domain.Result, error) {
	return e.runtime.Restore(ctx, target, backupPath)
}

// Backups lists the backups of target, newest first. An empty target lists all.
func (e *Engine) Backups(ctx context.Context, target string) ([]domain.Backup, error) {
	return e.backups.List(ctx, target)
}

// History returns journaled results of target, newest first.
func (e *Engine) History(ctx context.Context, target string, limit int) ([]domain.Result, error) {
	if e.journal == nil {
		return nil, fmt.Errorf("no journal configured")
	}
	return e.journal.History(ctx, target, limit)
}

// Kinds returns the registered fragment kinds sorted by name.
func (e *Engine) Kinds() []registry.Kind {
	return e.registry.Kinds()
}

// Kind looks up a registered fragment kind.
func (e *Engine) Kind(name string) (registry.Kind, bool) {
	return e.registry.Lookup(name)
}

// Backup loads one backup by path.
func (e *Engine) Backup(ctx context.Context, path string) (*domain.Backup, error) {
	return e.backups.Load(ctx, path)
}
