package stores

import "time"

// RunStatus is the journaled outcome of an update run.
type RunStatus string

const (
	RunStatusRunning              RunStatus = "running"
	RunStatusSucceeded            RunStatus = "succeeded"
	RunStatusSucceededWithWarning RunStatus = "succeeded-with-warning"
	RunStatusFailed               RunStatus = "failed"
)

// UpdateRun is one journaled update transaction.
type UpdateRun struct {
	// ID is the transaction id.
	ID string `json:"id"`

	// OSName is the stateroot the run targeted.
	OSName string `json:"osname"`

	// RemoteName and RemoteURL identify the update source.
	RemoteName string `json:"remote_name"`
	RemoteURL  string `json:"remote_url"`

	// Ref is the target ref the run deployed.
	Ref string `json:"ref"`

	// Commit is the resolved commit, empty if resolution never happened.
	Commit string `json:"commit,omitempty"`

	// Status is the run's journaled status.
	Status RunStatus `json:"status"`

	// FailedStage names the failing (or warned) stage, if any.
	FailedStage string `json:"failed_stage,omitempty"`

	// Error is the fatal error text, if any.
	Error *string `json:"error,omitempty"`

	// Warning is the non-fatal warning text, if any.
	Warning *string `json:"warning,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished, nil while running.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt and UpdatedAt are journal row timestamps.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
