package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/vmtune/internal/matcher"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
)

// tx tracks one transaction through the phase state machine.
type tx struct {
	e       *Engine
	target  ports.Target
	res     *domain.Result
	entered time.Time
}

func (e *Engine) begin(target ports.Target, kind string, action domain.Action) *tx {
	now := e.now()
	return &tx{
		e:      e,
		target: target,
		res: &domain.Result{
			TxID:      e.newID(),
			Target:    target.Name(),
			Kind:      kind,
			Action:    action,
			Phase:     domain.PhaseIdle,
			StartedAt: now,
		},
		entered: now,
	}
}

// transition moves to phase to and notifies hooks. err is the failure that caused
// the transition, if any.
func (t *tx) transition(ctx context.Context, to domain.Phase, err error) {
	now := t.e.now()
	event := &domain.PhaseEvent{
		Timestamp: now,
		TxID:      t.res.TxID,
		Target:    t.res.Target,
		Kind:      t.res.Kind,
		From:      t.res.Phase,
		To:        to,
		Elapsed:   now.Sub(t.entered),
		Err:       err,
	}
	t.res.Phase, t.entered = to, now

	t.e.logger.DebugContext(ctx, "phase",
		"tx_id", t.res.TxID,
		"target", t.res.Target,
		"kind", t.res.Kind,
		"phase", to,
	)
	if t.e.hooks.OnPhase != nil {
		t.e.hooks.OnPhase(ctx, event)
	}
}

// fail records a failure before any mutation reached the target.
func (t *tx) fail(code domain.Code, err error) {
	t.res.Outcome = domain.OutcomeFailed
	t.setErr(code, err)
}

// setErr stores err as a taxonomy error carrying the transaction identity. A code
// already attached to err wins over code.
func (t *tx) setErr(code domain.Code, err error) {
	var de *domain.Error
	if errors.As(err, &de) && de.Target == "" {
		code, err = de.Code, de.Err
	}
	t.res.Code = code
	t.res.Err = &domain.Error{
		Code:       code,
		Target:     t.res.Target,
		Kind:       t.res.Kind,
		BackupPath: t.res.BackupPath,
		Err:        err,
	}
}

// report copies the matcher verdict into the result.
func (t *tx) report(r *matcher.Report) {
	t.res.Status = r.Status
	t.res.Parts = make([]domain.PartStatus, len(r.Parts))
	for i, p := range r.Parts {
		t.res.Parts[i] = domain.PartStatus{Name: p.Part.Name, Status: p.Status, Detail: p.Detail}
	}
}

// finish stamps the result, records it and notifies hooks.
func (t *tx) finish(ctx context.Context, record bool) *domain.Result {
	t.res.FinishedAt = t.e.now()
	// The journal and hooks must see the result even when ctx was cancelled.
	ctx = context.WithoutCancel(ctx)

	if record && t.e.journal != nil {
		if err := t.e.journal.Record(ctx, t.res); err != nil {
			t.e.logger.WarnContext(ctx, "Failed to record reconciliation",
				"tx_id", t.res.TxID,
				"target", t.res.Target,
				"err", err,
			)
		}
	}
	if t.e.hooks.OnResult != nil {
		t.e.hooks.OnResult(ctx, &domain.ResultEvent{Timestamp: t.res.FinishedAt, Result: t.res})
	}
	return t.res
}

// cancelled maps a done context to the Cancelled code.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Errorf(domain.CodeCancelled, "%w", err)
	}
	return nil
}
