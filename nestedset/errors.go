package nestedset

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced node does not exist in the
	// active partition.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidMove is returned when a move targets the moving node
	// itself, its current parent, or one of its own descendants. No store
	// call is issued.
	ErrInvalidMove = errors.New("invalid move target")

	// ErrStructuralAnomaly is returned when the interval arithmetic implied
	// a sibling or child row that the store did not contain. It indicates a
	// corrupted interval set; the engine never attempts repair.
	ErrStructuralAnomaly = errors.New("structural anomaly in interval set")
)

// StorageError wraps a failure from the underlying record store. The
// surrounding transaction has been rolled back by the time it is returned;
// no partial shift is observable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
