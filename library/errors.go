/*
errors.go - Centralized error types for the library core

PURPOSE:
  All error kinds in one place. Callers (console, API) switch on them with
  errors.Is / errors.As to pick a message or an HTTP status.

ERROR CATEGORIES:
  1. Lookup errors - id/username does not resolve to an active record
  2. Rule violations - capacity, copies, issue limit, outstanding loans
  3. Persistence errors - load/save I/O failures

NOTE:
  Returning an already-returned loan is reported as ErrLoanNotFound. There is
  no separate "already returned" kind.

SEE ALSO:
  - library.go: wraps store failures in PersistenceError
  - api/handlers.go: maps these to HTTP statuses
*/
package library

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound = errors.New("not found")

	ErrBookNotFound   = fmt.Errorf("book %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrLoanNotFound   = fmt.Errorf("open loan %w", ErrNotFound)

	// ErrCapacityExceeded is returned when a store is at its configured limit.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrLedgerFull is the capacity error of the loan ledger.
	ErrLedgerFull = fmt.Errorf("loan ledger full: %w", ErrCapacityExceeded)

	// ErrNoCopiesAvailable is returned when every copy of a book is lent out.
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrIssueLimitReached is returned when a member already holds the
	// maximum number of books.
	ErrIssueLimitReached = errors.New("issue limit reached")

	// ErrHasOutstandingLoans blocks deactivation of a lent book or a
	// borrowing member.
	ErrHasOutstandingLoans = errors.New("has outstanding loans")

	// ErrPersistence wraps any load/save failure of the backing store.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput is returned for malformed fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned by the authenticator.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CapacityError names the store that is full.
type CapacityError struct {
	Store string
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s store at capacity (%d records)", e.Store, e.Limit)
}

func (e *CapacityError) Unwrap() error {
	if e.Store == "loan" {
		return ErrLedgerFull
	}
	return ErrCapacityExceeded
}

// OutstandingLoansError reports how many copies are still out.
type OutstandingLoansError struct {
	Kind        string // "book" or "member"
	ID          int
	Outstanding int
}

func (e *OutstandingLoansError) Error() string {
	return fmt.Sprintf("%s %d has %d outstanding loan(s)", e.Kind, e.ID, e.Outstanding)
}

func (e *OutstandingLoansError) Unwrap() error {
	return ErrHasOutstandingLoans
}

// PersistenceError is returned when a mutation could not be saved. The
// in-memory state has been rolled back when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing or inactive record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRuleViolation returns true if a lending rule blocked the operation.
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrNoCopiesAvailable) ||
		errors.Is(err, ErrIssueLimitReached) ||
		errors.Is(err, ErrHasOutstandingLoans)
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		IsRuleViolation(err) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrCapacityExceeded)
}
