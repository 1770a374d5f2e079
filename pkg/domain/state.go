package domain

// Action is what the caller asks the engine to do with a fragment.
type Action string

const (
	ActionApply   Action = "apply"
	ActionRemove  Action = "remove"
	ActionStatus  Action = "status"
	ActionRestore Action = "restore"
)

// Status is the matcher's verdict for a document against a fragment.
type Status string

const (
	StatusSatisfied        Status = "Satisfied"
	StatusAbsent           Status = "Absent"
	StatusPartiallyPresent Status = "PartiallyPresent"
	StatusConflicting      Status = "Conflicting"
)

// MergePolicy defines how a part's desired content is merged into a document.
type MergePolicy string

const (
	PolicyInsertIfAbsent  MergePolicy = "InsertIfAbsent"
	PolicyReplaceWhole    MergePolicy = "ReplaceWhole"
	PolicyRemoveIfPresent MergePolicy = "RemoveIfPresent"
)

// Phase is a state of the transaction state machine.
type Phase string

const (
	PhaseIdle           Phase = "Idle"
	PhaseQueried        Phase = "Queried"
	PhaseBackedUp       Phase = "BackedUp"
	PhaseMutated        Phase = "Mutated"
	PhaseApplied        Phase = "Applied"
	PhaseVerified       Phase = "Verified"
	PhaseCommitted      Phase = "Committed"
	PhaseRolledBack     Phase = "RolledBack"
	PhaseRollbackFailed Phase = "RollbackFailed"
)

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseRolledBack || p == PhaseRollbackFailed
}

// Outcome is the final classification of a reconciliation attempt.
type Outcome string

const (
	OutcomeUnchanged      Outcome = "Unchanged"
	OutcomeApplied        Outcome = "Applied"
	OutcomeFailed         Outcome = "Failed"         // fatal before any mutation
	OutcomeRolledBack     Outcome = "RolledBack"     // Failed(RolledBack)
	OutcomeRollbackFailed Outcome = "RollbackFailed" // Failed(RollbackFailed)
)

// IsFailure reports whether the outcome is any Failed variant.
func (o Outcome) IsFailure() bool {
	return o == OutcomeFailed || o == OutcomeRolledBack || o == OutcomeRollbackFailed
}
