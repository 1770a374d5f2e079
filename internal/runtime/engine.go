// Package runtime runs reconciliation transactions: query, back up, mutate, apply,
// verify, then commit or roll back.
package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/vmtune/internal/logging"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/aretw0/vmtune/pkg/session"
)

// DefaultCallTimeout bounds every call into the daemon or the regenerate command.
const DefaultCallTimeout = 30 * time.Second

// Engine is the transaction manager.
type Engine struct {
	registry    *registry.Registry
	backups     ports.BackupStore
	journal     ports.Journal
	locks       *session.Manager
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	callTimeout time.Duration
	keepBackups bool
	now         func() time.Time
	newID       func() string
}

// Option configures the Engine.
type Option func(*Engine)

// WithJournal records every finished transaction.
func WithJournal(j ports.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLocks shares a target lock manager, e.g. one backed by a distributed locker.
func WithLocks(m *session.Manager) Option {
	return func(e *Engine) {
		if m != nil {
			e.locks = m
		}
	}
}

// WithLifecycleHooks sets the phase and result callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCallTimeout bounds each external call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithKeepBackups retains the backup of committed transactions.
func WithKeepBackups(keep bool) Option {
	return func(e *Engine) {
		e.keepBackups = keep
	}
}

// WithClock replaces time.Now, for deterministic backup names in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the transaction ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates an Engine resolving fragments with reg and saving backups to backups.
func NewEngine(reg *registry.Registry, backups ports.BackupStore, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		backups:     backups,
		logger:      logging.NewNop(),
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		newID:       newTxID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = session.NewManager(session.WithLogger(e.logger))
	}
	return e
}

// Registry returns the fragment catalog.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Backups returns the backup store.
func (e *Engine) Backups() ports.BackupStore {
	return e.backups
}
