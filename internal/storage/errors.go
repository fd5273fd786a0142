package storage

import (
	"errors"
	"fmt"
)

// Provider error taxonomy. Backends signal failures by wrapping one of these
// sentinels so callers can branch with errors.Is and the HTTP layer can map
// statuses deterministically.
var (
	// ErrNotFound: the row is absent or not owned by the calling user.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness violation, or a category deletion that
	// cannot proceed without a valid replacement.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument: malformed pagination, dates or ids.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflictf wraps ErrConflict with context.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// InvalidArgumentf wraps ErrInvalidArgument with context.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}
