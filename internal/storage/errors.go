package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrOptimisticLockConflict is returned when a save carries a version
	// that no longer matches the stored one. The caller recovers by
	// re-reading and retrying with the fresh identity and version; the
	// storage layer never retries on its own.
	ErrOptimisticLockConflict = errors.New("optimistic lock conflict")

	// ErrNotFound is returned when an entity id does not exist. Empty list
	// results are not an error.
	ErrNotFound = errors.New("entity not found")

	// ErrSerializationFailure is returned on transient storage contention.
	// A caller-side retry may succeed.
	ErrSerializationFailure = errors.New("serialization failure")
)

// UniqueViolationError is returned when a write collides on a unique natural
// key. Constraint carries the violated constraint name when the backend
// reports one.
type UniqueViolationError struct {
	Constraint string
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint == "" {
		return "unique violation"
	}
	return fmt.Sprintf("unique violation: %s", e.Constraint)
}

// ForeignKeyViolationError is returned when a write references a missing row.
type ForeignKeyViolationError struct {
	Constraint string
}

func (e *ForeignKeyViolationError) Error() string {
	if e.Constraint == "" {
		return "foreign key violation"
	}
	return fmt.Sprintf("foreign key violation: %s", e.Constraint)
}

// CheckViolationError is returned when a write fails a check constraint.
type CheckViolationError struct {
	Constraint string
}

func (e *CheckViolationError) Error() string {
	if e.Constraint == "" {
		return "check violation"
	}
	return fmt.Sprintf("check violation: %s", e.Constraint)
}

// IsUniqueViolation reports whether err is a unique-key violation.
func IsUniqueViolation(err error) bool {
	var uv *UniqueViolationError
	return errors.As(err, &uv)
}

// IsConstraintViolation reports whether err is any constraint violation
// (unique, foreign key or check). These surface as field-level validation
// failures to the caller and are not retried.
func IsConstraintViolation(err error) bool {
	var (
		uv *UniqueViolationError
		fk *ForeignKeyViolationError
		cv *CheckViolationError
	)
	return errors.As(err, &uv) || errors.As(err, &fk) || errors.As(err, &cv)
}
