// Package ats drives one resume submission from validation to a rendered
// result or a user-visible error.
package ats

import (
	"time"

	"smartats/internal/analysis"
	"smartats/internal/errors"
	"smartats/internal/types"
)

// State is a step of the per-submission lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateExtracting State = "extracting"
	StatePrompting  State = "prompting"
	StateCalling    State = "calling"
	StateParsing    State = "parsing"
	StateRendered   State = "rendered"
	StateErrorShown State = "error_shown"
)

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == StateRendered || s == StateErrorShown
}

// Form field names used to place validation messages
const (
	FieldJobDescription = "job_description"
	FieldResume         = "resume"
)

// User-facing messages
const (
	MsgMissingJobDescription = "Please paste the Job Description before submitting."
	MsgMissingResume         = "Please upload your resume (PDF) before submitting."
	MsgInvalidJSON           = "The model returned a response but it was not a valid JSON structure. Displaying raw output for debugging:"
	msgAPIError              = "Error during API call: %s"
	msgDocumentError         = "Could not read the uploaded resume: %s"
	msgUnexpected            = "An unexpected error occurred during result display: %v"
)

// Violation is one rejected form field
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Failure describes why a submission ended in StateErrorShown
type Failure struct {
	Kind    errors.ErrorType `json:"kind"`
	Code    string           `json:"code"`
	Message string           `json:"message"`

	// Field is the first rejected field for validation failures
	Field      string      `json:"field,omitempty"`
	Violations []Violation `json:"violations,omitempty"`

	// RawReply is the model output when it could not be decoded
	RawReply    string `json:"rawReply,omitempty"`
	HasRawReply bool   `json:"-"`
}

// Outcome is the result of one submission. Exactly one of View and Failure is set.
type Outcome struct {
	ID      string  `json:"id"`
	State   State   `json:"state"`
	Visited []State `json:"visited"`

	View    *analysis.View `json:"view,omitempty"`
	Failure *Failure       `json:"failure,omitempty"`

	Model      string            `json:"model,omitempty"`
	TokenUsage *types.TokenUsage `json:"tokenUsage,omitempty"`
	PageCount  int               `json:"pageCount,omitempty"`
	Duration   time.Duration     `json:"durationNs"`
}

// Succeeded reports whether the submission was rendered
func (o *Outcome) Succeeded() bool {
	return o.State == StateRendered && o.View != nil
}

// FieldMessage returns the validation message for field, if any
func (o *Outcome) FieldMessage(field string) string {
	if o.Failure == nil {
		return ""
	}
	for _, v := range o.Failure.Violations {
		if v.Field == field {
			return v.Message
		}
	}
	return ""
}
