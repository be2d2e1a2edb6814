package companion

import (
	"errors"
	"fmt"
)

// Error codes surfaced to protocol callers. Validation and protocol
// integrity failures are terminal; retry policy belongs to the caller.
const (
	CodeNoDraft            = "no_draft"
	CodeNoCritique         = "no_critique"
	CodeAlreadyBalanced    = "already_balanced"
	CodeRevisionsExist     = "revisions_exist"
	CodeNoPendingOperation = "no_pending_operation"
	CodeNonceMismatch      = "nonce_mismatch"
	CodeInvalidRequest     = "invalid_request"
	CodeBackendFailure     = "backend_failure"
)

// ProtocolError is a machine-readable refinement protocol failure.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrNoDraft = &ProtocolError{
		Code:    CodeNoDraft,
		Message: "no draft exists yet, call draft first",
	}
	ErrNoCritique = &ProtocolError{
		Code:    CodeNoCritique,
		Message: "no critique exists for the current draft, call critique first",
	}
	ErrAlreadyBalanced = &ProtocolError{
		Code:    CodeAlreadyBalanced,
		Message: "every critique already has a revision, call critique again first",
	}
	ErrRevisionsExist = &ProtocolError{
		Code:    CodeRevisionsExist,
		Message: "revisions exist for this query, re-drafting would corrupt the iteration chain",
	}
	ErrNoPendingOperation = &ProtocolError{
		Code:    CodeNoPendingOperation,
		Message: "no pending operation matches this completion, request the phase again",
	}
	ErrNonceMismatch = &ProtocolError{
		Code:    CodeNonceMismatch,
		Message: "nonce does not match the pending operation",
	}
)

// BackendError wraps a generation or embedding backend failure. The slot is
// left untouched when one occurs, so the caller may retry the phase safely.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend failure: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapBackend tags err as a retryable backend failure for the given step.
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

// CodeOf maps any error to its protocol code, defaulting to backend_failure
// for wrapped backend errors and invalid_request for everything else.
func CodeOf(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var be *BackendError
	if errors.As(err, &be) {
		return CodeBackendFailure
	}
	return CodeInvalidRequest
}
