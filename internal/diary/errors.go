package diary

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidEvent = errors.New("invalid event")
	ErrInvalidInput = errors.New("invalid input")
	ErrAlreadyLiked = errors.New("already liked")
	ErrDuplicate    = errors.New("duplicate request")
)

type OpError struct {
	Op       string
	Resource string
	ID       uint64
	Err      error
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	if e.ID > 0 {
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// wrap leaves domain sentinels bare so callers can match them directly.
func wrap(op, resource string, id uint64, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{ErrNotFound, ErrForbidden, ErrInvalidEvent, ErrInvalidInput, ErrAlreadyLiked, ErrDuplicate} {
		if errors.Is(err, s) {
			return err
		}
	}
	return &OpError{Op: op, Resource: resource, ID: id, Err: err}
}
