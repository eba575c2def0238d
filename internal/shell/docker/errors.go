package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConnectionFailed is returned when the Docker daemon is unreachable.
	ErrConnectionFailed = errors.New("docker connection failed")

	// ErrBuildFailed is returned when an image build reports an error.
	ErrBuildFailed = errors.New("image build failed")

	// ErrStartFailed is returned when a container cannot be created or started.
	ErrStartFailed = errors.New("container start failed")

	// ErrProbeFailed is returned when a tooling probe cannot be executed.
	ErrProbeFailed = errors.New("image probe failed")
)

// EngineError wraps Docker engine errors with operation context.
type EngineError struct {
	Op      string // Operation that failed (e.g., "BuildImage")
	Ref     string // Image tag or container name if applicable
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Ref, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError.
func NewEngineError(op, ref, message string, err error) *EngineError {
	return &EngineError{Op: op, Ref: ref, Message: message, Err: err}
}
