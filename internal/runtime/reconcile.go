package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/vmtune/internal/matcher"
	"github.com/aretw0/vmtune/internal/planner"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/registry"
)

// Request asks for one reconciliation.
type Request struct {
	Target ports.Target
	Kind   string
	Action domain.Action // apply or remove
	Params registry.Params

	// ResolveConflicts allows removing every duplicate of a singleton before
	// inserting the desired node.
	ResolveConflicts bool
	// DryRun stops after planning: the result carries the edits and the candidate
	// document, and the target is never touched.
	DryRun bool
}

// Reconcile brings the target to the state the fragment describes. The returned
// error is the Result's Err; the Result is always non-nil.
func (e *Engine) Reconcile(ctx context.Context, req Request) (*domain.Result, error) {
	t := e.begin(req.Target, req.Kind, req.Action)

	if req.Action != domain.ActionApply && req.Action != domain.ActionRemove {
		t.fail(domain.CodePrecondition, fmt.Errorf("unsupported action %q", req.Action))
		return t.finish(ctx, false), t.res.Err
	}

	err := e.locks.WithLock(ctx, req.Target.Name(), func(ctx context.Context) error {
		e.run(ctx, t, req)
		return nil
	})
	if err != nil {
		code := domain.CodePrecondition
		if ctx.Err() != nil {
			code = domain.CodeCancelled
		}
		t.fail(code, err)
	}

	res := t.finish(ctx, !req.DryRun)
	return res, res.Err
}

func (e *Engine) run(ctx context.Context, t *tx, req Request) {
	target := req.Target

	// 1. Resolve
	frag, err := e.registry.Resolve(req.Kind, req.Action, req.Params)
	if err != nil {
		t.fail(domain.CodePrecondition, err)
		return
	}
	if frag.DocKind != target.DocKind() {
		t.fail(domain.CodePrecondition, fmt.Errorf("kind %s edits %s documents, target is a %s document", frag.Kind, frag.DocKind, target.DocKind()))
		return
	}

	// 2. Query
	raw, doc, code, err := e.query(ctx, target)
	if err != nil {
		t.fail(code, err)
		return
	}
	t.res.Before = raw
	t.transition(ctx, domain.PhaseQueried, nil)

	report, err := matcher.Match(doc, frag)
	if err != nil {
		t.fail(domain.CodePrecondition, err)
		return
	}
	t.report(report)
	if report.Status == domain.StatusSatisfied {
		t.res.Outcome = domain.OutcomeUnchanged
		return
	}

	// 3. Plan the candidate in memory
	edits, err := planner.Plan(doc, frag, report.Status, planner.Options{ResolveConflicts: req.ResolveConflicts})
	if err != nil {
		t.fail(domain.CodeConflictingState, err)
		return
	}
	if err := planner.Apply(doc, edits); err != nil {
		t.fail(domain.CodePrecondition, fmt.Errorf("apply plan: %w", err))
		return
	}
	candidate := doc.String()
	t.res.After = candidate
	t.res.Edits = make([]string, len(edits))
	for i, ed := range edits {
		t.res.Edits[i] = ed.String()
	}
	if candidate == raw {
		t.res.Outcome = domain.OutcomeUnchanged
		return
	}
	if req.DryRun {
		t.res.DryRun = true
		t.res.Outcome = domain.OutcomeUnchanged
		return
	}

	// 4. Back up
	if err := cancelled(ctx); err != nil {
		t.fail(domain.CodeCancelled, err)
		return
	}
	backup := &domain.Backup{Target: target.Name(), Kind: frag.Kind, Raw: raw, CreatedAt: e.now()}
	path, err := e.backups.Save(ctx, backup)
	if err != nil {
		t.fail(domain.CodePrecondition, fmt.Errorf("backup: %w", err))
		return
	}
	t.res.BackupPath = path
	t.transition(ctx, domain.PhaseBackedUp, nil)
	t.transition(ctx, domain.PhaseMutated, nil)

	if err := cancelled(ctx); err != nil {
		// Nothing was submitted; the target still holds the backup text.
		t.res.Outcome = domain.OutcomeRolledBack
		t.setErr(domain.CodeCancelled, err)
		t.transition(ctx, domain.PhaseRolledBack, err)
		return
	}

	// 5. Apply
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	err = target.Define(callCtx, candidate)
	cancel()
	if err != nil {
		e.rollback(ctx, t, backup, domain.CodeApplyRejected, fmt.Errorf("define: %w", err))
		return
	}
	t.transition(ctx, domain.PhaseApplied, nil)

	if err := cancelled(ctx); err != nil {
		e.rollback(ctx, t, backup, domain.CodeCancelled, err)
		return
	}

	// 6. Verify
	if err := e.verify(ctx, target, frag); err != nil {
		e.rollback(ctx, t, backup, domain.CodeVerificationMismatch, err)
		return
	}
	t.transition(ctx, domain.PhaseVerified, nil)

	if err := cancelled(ctx); err != nil {
		e.rollback(ctx, t, backup, domain.CodeCancelled, err)
		return
	}

	// 7. Commit
	if !e.keepBackups {
		if err := e.backups.Delete(context.WithoutCancel(ctx), path); err != nil {
			e.logger.WarnContext(ctx, "Failed to delete backup after commit",
				"target", target.Name(),
				"backup", path,
				"err", err,
			)
		} else {
			t.res.BackupPath = ""
		}
	}
	t.res.Outcome = domain.OutcomeApplied
	t.transition(ctx, domain.PhaseCommitted, nil)
}

// query exports and parses the target document.
func (e *Engine) query(ctx context.Context, target ports.Target) (string, document.Document, domain.Code, error) {
	if err := cancelled(ctx); err != nil {
		return "", nil, domain.CodeCancelled, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	raw, err := target.Export(callCtx)
	if err != nil {
		return "", nil, domain.CodePrecondition, fmt.Errorf("export: %w", err)
	}

	doc, err := document.Parse(target.DocKind(), raw, target.AssignmentKey())
	if err != nil {
		return "", nil, domain.CodeParse, err
	}
	return raw, doc, domain.CodeNone, nil
}

// verify re-reads the target and requires the fragment to be Satisfied.
func (e *Engine) verify(ctx context.Context, target ports.Target, frag *domain.Fragment) error {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	raw, err := target.Export(callCtx)
	if err != nil {
		return fmt.Errorf("re-read: %w", err)
	}

	doc, err := document.Parse(target.DocKind(), raw, target.AssignmentKey())
	if err != nil {
		return fmt.Errorf("re-read: %w", err)
	}
	report, err := matcher.Match(doc, frag)
	if err != nil {
		return err
	}
	if report.Status != domain.StatusSatisfied {
		var details []string
		for _, p := range report.Parts {
			if p.Status != domain.StatusSatisfied {
				details = append(details, p.Part.Name+": "+p.Detail)
			}
		}
		return fmt.Errorf("re-read document is %s (%s)", report.Status, strings.Join(details, "; "))
	}
	return nil
}

// rollback restores the backup once and checks the target returns it byte for byte.
// It is never retried: a failure is terminal and leaves the backup for the operator.
func (e *Engine) rollback(ctx context.Context, t *tx, backup *domain.Backup, code domain.Code, cause error) {
	t.setErr(code, cause)
	e.logger.WarnContext(ctx, "Rolling back",
		"tx_id", t.res.TxID,
		"target", t.res.Target,
		"kind", t.res.Kind,
		"code", code,
		"err", cause,
	)

	// The rollback runs to completion even if the caller gave up.
	rctx := context.WithoutCancel(ctx)
	if err := e.restore(rctx, t.target, backup.Raw); err != nil {
		t.res.Outcome = domain.OutcomeRollbackFailed
		t.setErr(domain.CodeRollbackFailed, fmt.Errorf("%w (after %s: %v)", err, code, cause))
		e.logger.ErrorContext(ctx, "Rollback failed, manual recovery required",
			"tx_id", t.res.TxID,
			"target", t.res.Target,
			"kind", t.res.Kind,
			"backup", t.res.BackupPath,
			"err", err,
		)
		t.transition(ctx, domain.PhaseRollbackFailed, err)
		return
	}

	t.res.Outcome = domain.OutcomeRolledBack
	t.transition(ctx, domain.PhaseRolledBack, cause)
}

// restore defines raw and requires the target to read back exactly raw.
func (e *Engine) restore(ctx context.Context, target ports.Target, raw string) error {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := target.Define(callCtx, raw); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	readCtx, cancelRead := context.WithTimeout(ctx, e.callTimeout)
	defer cancelRead()
	got, err := target.Export(readCtx)
	if err != nil {
		return fmt.Errorf("restore: re-read: %w", err)
	}
	if got != raw {
		return fmt.Errorf("restore: target differs from backup after define")
	}
	return nil
}
