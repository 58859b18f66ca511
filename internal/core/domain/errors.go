package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Kinds
// =============================================================================

var (
	// ErrInvalidArgument is returned for a bad bump directive or version.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPreconditionFailed is returned when local or remote state does not
	// allow the deploy to proceed.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict is returned when the target asset path is already in use.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the account lacks a required feature flag.
	ErrForbidden = errors.New("forbidden")

	// ErrUserRejected is returned when the user declines a confirmation.
	ErrUserRejected = errors.New("rejected by user")

	// ErrNotFound is returned when a remote resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemote is returned for any failure reported by a remote collaborator.
	ErrRemote = errors.New("remote error")
)

// DeployError carries the failing stage and an error kind. It unwraps to both
// the kind and the underlying cause, so errors.Is matches either.
type DeployError struct {
	Op      string // Stage that failed (e.g., "upload")
	Kind    error  // One of the Err* kinds above
	Message string
	Err     error
}

func (e *DeployError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DeployError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDeployError creates a new DeployError.
func NewDeployError(op string, kind error, message string, err error) *DeployError {
	return &DeployError{
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the error kind of err, or nil if it carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidArgument,
		ErrPreconditionFailed,
		ErrConflict,
		ErrForbidden,
		ErrUserRejected,
		ErrNotFound,
		ErrRemote,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
