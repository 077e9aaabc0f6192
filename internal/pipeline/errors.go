package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrProviderAuth
	ErrProviderRequest
	ErrGenerationFailed
	ErrPollingTimeout
	ErrNoScenesSucceeded
	ErrContinuationBroken
	ErrMerge
	ErrCancelled
	ErrUnknown
)

// PipelineError is the job-level failure type. Per-scene failures are
// recorded on SceneResults and never surface as PipelineErrors; only the
// fatal classes (validation, auth, no scenes succeeded, broken continuation)
// end a job.
type PipelineError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *PipelineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrProviderAuth:
		return "ProviderAuth"
	case ErrProviderRequest:
		return "ProviderRequest"
	case ErrGenerationFailed:
		return "GenerationFailed"
	case ErrPollingTimeout:
		return "PollingTimeout"
	case ErrNoScenesSucceeded:
		return "NoScenesSucceeded"
	case ErrContinuationBroken:
		return "ContinuationBroken"
	case ErrMerge:
		return "Merge"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Type == errorType
	}
	return false
}
