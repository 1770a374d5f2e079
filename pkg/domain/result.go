package domain

import "time"

// Backup is the raw text of a document captured before the first mutation.
// It is never modified after creation.
type Backup struct {
	Target    string    `json:"target"`
	Kind      string    `json:"kind"`
	Raw       string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
}

// PartStatus is the matcher verdict for one part of a fragment.
type PartStatus struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Result summarizes one reconciliation attempt.
type Result struct {
	TxID       string       `json:"tx_id"`
	Target     string       `json:"target"`
	Kind       string       `json:"kind"`
	Action     Action       `json:"action"`
	Status     Status       `json:"status"`
	Phase      Phase        `json:"phase"`
	Outcome    Outcome      `json:"outcome"`
	Code       Code         `json:"code,omitempty"`
	Err        error        `json:"-"`
	BackupPath string       `json:"backup_path,omitempty"`
	Parts      []PartStatus `json:"parts,omitempty"`
	Edits      []string     `json:"edits,omitempty"`
	DryRun     bool         `json:"dry_run,omitempty"`
	Before     string       `json:"-"`
	After      string       `json:"-"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Error returns the failure message, or an empty string.
func (r *Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
