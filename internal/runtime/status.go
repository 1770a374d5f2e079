package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/vmtune/internal/matcher"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/registry"
)

// Status reports how target compares to the apply shape of kind. It never writes.
func (e *Engine) Status(ctx context.Context, target ports.Target, kind string, params registry.Params) (*domain.Result, error) {
	t := e.begin(target, kind, domain.ActionStatus)

	frag, err := e.registry.Resolve(kind, domain.ActionStatus, params)
	if err != nil {
		t.fail(domain.CodePrecondition, err)
		return t.finish(ctx, false), t.res.Err
	}
	if frag.DocKind != target.DocKind() {
		t.fail(domain.CodePrecondition, fmt.Errorf("kind %s edits %s documents, target is a %s document", frag.Kind, frag.DocKind, target.DocKind()))
		return t.finish(ctx, false), t.res.Err
	}

	raw, doc, code, err := e.query(ctx, target)
	if err != nil {
		t.fail(code, err)
		return t.finish(ctx, false), t.res.Err
	}
	t.res.Before = raw
	t.transition(ctx, domain.PhaseQueried, nil)

	report, err := matcher.Match(doc, frag)
	if err != nil {
		t.fail(domain.CodePrecondition, err)
		return t.finish(ctx, false), t.res.Err
	}
	t.report(report)
	t.res.Outcome = domain.OutcomeUnchanged
	return t.finish(ctx, false), nil
}

// StatusAll runs Status for every registered kind that edits the target's document
// type, with default params. Kinds whose params have no defaults are reported with
// their PreconditionError.
func (e *Engine) StatusAll(ctx context.Context, target ports.Target, params map[string]registry.Params) []*domain.Result {
	var out []*domain.Result
	for _, k := range e.registry.Kinds() {
		if k.Doc != target.DocKind() {
			continue
		}
		res, _ := e.Status(ctx, target, k.Name, params[k.Name])
		out = append(out, res)
	}
	return out
}

// Restore defines the text of a backup on target, under the target lock, and
// checks the target reads it back byte for byte. It is an explicit operator action
// for recovering from RollbackFailed; the backup itself is kept.
func (e *Engine) Restore(ctx context.Context, target ports.Target, path string) (*domain.Result, error) {
	backup, err := e.backups.Load(ctx, path)
	if err != nil {
		t := e.begin(target, "", domain.ActionRestore)
		t.fail(domain.CodePrecondition, err)
		return t.finish(ctx, false), t.res.Err
	}

	t := e.begin(target, backup.Kind, domain.ActionRestore)
	t.res.BackupPath = backup.Path

	err = e.locks.WithLock(ctx, target.Name(), func(ctx context.Context) error {
		// The backup must be a document of the target's type.
		if _, err := document.Parse(target.DocKind(), backup.Raw, target.AssignmentKey()); err != nil {
			t.fail(domain.CodePrecondition, fmt.Errorf("backup %s does not fit target %s: %w", path, target.Name(), err))
			return nil
		}

		raw, _, code, err := e.query(ctx, target)
		if err != nil {
			t.fail(code, err)
			return nil
		}
		t.res.Before, t.res.After = raw, backup.Raw
		t.transition(ctx, domain.PhaseQueried, nil)

		if raw == backup.Raw {
			t.res.Outcome = domain.OutcomeUnchanged
			return nil
		}
		if err := e.restore(ctx, target, backup.Raw); err != nil {
			t.res.Outcome = domain.OutcomeRollbackFailed
			t.setErr(domain.CodeRollbackFailed, err)
			t.transition(ctx, domain.PhaseRollbackFailed, err)
			return nil
		}
		t.res.Outcome = domain.OutcomeApplied
		t.transition(ctx, domain.PhaseCommitted, nil)
		return nil
	})
	if err != nil {
		code := domain.CodePrecondition
		if ctx.Err() != nil {
			code = domain.CodeCancelled
		}
		t.fail(code, err)
	}

	res := t.finish(ctx, true)
	return res, res.Err
}
