// Package store loads site target configuration and persists deploy
// history.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConfigDirMissing is returned when the site config directory
	// does not exist.
	ErrConfigDirMissing = errors.New("site config directory does not exist")

	// ErrInvalidConfig is returned when a site config file cannot be
	// parsed or fails validation.
	ErrInvalidConfig = errors.New("invalid site configuration")

	// ErrConnectionFailed is returned when the history database cannot
	// be opened.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when history migrations fail.
	ErrMigrationFailed = errors.New("database migration failed")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "LoadTargets")
	Path    string // File or DSN if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, path, message string, err error) *StoreError {
	return &StoreError{Op: op, Path: path, Message: message, Err: err}
}
