package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/Backland-Labs/docflow/internal/analysis"
)

// State is the lifecycle state of a run
type State string

const (
	StateIdle           State = "idle"
	StateSubmitting     State = "submitting"
	StateAwaitingResult State = "awaiting_result"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
	StateTimedOut       State = "timed_out"
)

// Terminal reports whether no further transition can occur from s
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// rank orders states along the only permitted direction of travel
func (s State) rank() int {
	switch s {
	case StateIdle:
		return 0
	case StateSubmitting:
		return 1
	case StateAwaitingResult:
		return 2
	case StateSucceeded, StateFailed, StateTimedOut:
		return 3
	default:
		return -1
	}
}

// ErrorKind classifies why a run did not succeed
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindApplication        ErrorKind = "application"
	KindIncompleteResponse ErrorKind = "incomplete_response"
	KindTransport          ErrorKind = "transport"
	KindTimeout            ErrorKind = "timeout"
	KindCanceled           ErrorKind = "canceled"
)

const (
	// MessageTimeout is shown when the run timer fires
	MessageTimeout = "The server took too long to respond. Please try again or use a smaller PDF."
	// MessageCanceled is shown when the user cancels a run
	MessageCanceled = "The analysis was canceled before the service responded."
	// MessageSuperseded is shown when a newer submission replaces a run
	MessageSuperseded = "The analysis was superseded by a newer submission."
	// MessageIncomplete is shown when a success response has nothing usable
	MessageIncomplete = "The service response contained neither a result nor an upload id."
)

// ErrRunInProgress is returned by Start when the reject policy is active and
// the current run has not finished
var ErrRunInProgress = errors.New("a run is already in progress")

// Error is the terminal error of a run, or a validation failure from Start
type Error struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
	Err     error     `json:"-" yaml:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a workflow error, or "" if err is not one
func KindOf(err error) ErrorKind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}

// Snapshot is an immutable copy of a run's observable state
type Snapshot struct {
	RunID      string           `json:"run_id" yaml:"run_id"`
	File       string           `json:"file" yaml:"file"`
	State      State            `json:"state" yaml:"state"`
	RemoteID   string           `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	Result     *analysis.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error      *Error           `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	UpdatedAt  time.Time        `json:"updated_at" yaml:"updated_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Duration is the time from start to the terminal transition, or to the
// latest update while the run is still active
func (s Snapshot) Duration() time.Duration {
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return s.UpdatedAt.Sub(s.StartedAt)
}
