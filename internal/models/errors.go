package models

import "github.com/pkg/errors"

var (
	ErrNotFound            = errors.New("entity not found")
	ErrPersistenceConflict = errors.New("entity is locked by a concurrent writer")
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidValue        = errors.New("invalid field value")
)

// FieldError is a per-field rejection of an operator edit.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error { return e.Err }
