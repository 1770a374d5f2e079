package domain

import (
	"context"
	"time"
)

// PhaseEvent is emitted on every transition of the transaction state machine.
type PhaseEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	TxID      string        `json:"tx_id"`
	Target    string        `json:"target"`
	Kind      string        `json:"kind"`
	From      Phase         `json:"from"`
	To        Phase         `json:"to"`
	Elapsed   time.Duration `json:"elapsed"` // time spent in From
	Err       error         `json:"-"`
}

// ResultEvent is emitted once per reconciliation when it finishes.
type ResultEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Result    *Result   `json:"result"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPhase  func(context.Context, *PhaseEvent)
	OnResult func(context.Context, *ResultEvent)
}
