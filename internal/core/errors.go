package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")

	// ErrDuplicateMonth signals that a run tried to create two reports for
	// the same owner and month.
	ErrDuplicateMonth = errors.New("duplicate month report")
)

// ParseError reports a stored row that does not match its table schema.
type ParseError struct {
	Table  string
	Row    int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s row %d column %s: %v", e.Table, e.Row, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps a failure reported by the storage collaborator.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError carries a rejected input. It matches ErrInvalid and its
// cause with errors.Is, and prints as the cause alone.
type ValidationError struct {
	Err error
}

// Invalid wraps err as a ValidationError.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() []error { return []error{ErrInvalid, e.Err} }
