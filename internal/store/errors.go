package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Every error returned by a Store wraps exactly one of these.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("transient failure")
)

// OpError describes a failed data-access operation.
type OpError struct {
	Op     string // list, create, update, delete
	Entity string // project, issue, thresholds
	ID     string
	Err    error
}

func (e *OpError) Error() string {
	target := e.Entity
	if e.ID != "" {
		target += " " + e.ID
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, target, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Kind returns the sentinel kind wrapped by err, or nil when err did not come
// from a Store.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrTransient} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func opError(op, entity, id string, err error) error {
	return &OpError{Op: op, Entity: entity, ID: id, Err: err}
}

func invalid(op, entity, id, format string, args ...any) error {
	return opError(op, entity, id, fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...)))
}

func notFound(op, entity, id string) error {
	return opError(op, entity, id, ErrNotFound)
}

// classify maps a database-level error onto an error kind.
func classify(op, entity, id string, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, entity, id)
	}
	// Driver failures, deadlines and cancellations are all retryable.
	return opError(op, entity, id, fmt.Errorf("%w: %w", ErrTransient, err))
}
