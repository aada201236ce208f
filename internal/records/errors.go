package records

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record exists with the requested identifier.
var ErrNotFound = errors.New("record not found")

// errNoStore signals that the module was initialized without a database.
var errNoStore = errors.New("store not available")

// StorageError wraps a database-level failure: the file is unwritable or
// corrupt, or a constraint was violated. Distinguish from ErrNotFound via
// errors.As / errors.Is.
type StorageError struct {
	Op  string // Operation that failed: "insert", "update", ...
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("records: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
