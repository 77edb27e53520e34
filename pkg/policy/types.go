package policy

import (
	"time"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the update.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed indicates if the update is allowed to proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block the update.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document handed to Rego for evaluation.
type Input struct {
	// Request is the update request under evaluation.
	Request *RequestInput `json:"request,omitempty"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// RequestInput mirrors an update request with stable JSON field names for
// Rego rules.
type RequestInput struct {
	OSName    string      `json:"osname"`
	Remote    RemoteInput `json:"remote"`
	Refs      []string    `json:"refs"`
	TargetRef string      `json:"target_ref"`
}

// RemoteInput mirrors a remote for Rego rules.
type RemoteInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed (e.g., "update").
	Operation string `json:"operation,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewInput builds the evaluation input for an update request.
func NewInput(req engine.Request, operation string) *Input {
	return &Input{
		Request: &RequestInput{
			OSName: req.OSName,
			Remote: RemoteInput{
				Name: req.Remote.Name,
				URL:  req.Remote.URL,
			},
			Refs:      req.Refs,
			TargetRef: req.TargetRef,
		},
		Context: &Context{
			Timestamp: time.Now(),
			Operation: operation,
		},
	}
}
