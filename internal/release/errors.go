package release

import (
	"errors"
	"fmt"

	"github.com/roach88/stableids/internal/ir"
)

// Error represents an error detected during a release run.
//
// Fatal codes (the run aborts and rolls back):
//   - INTEGRITY_VIOLATION: current change counter below the previous release's
//   - ACTOR_UNRESOLVED: the configured Person cannot be found in a store
//   - TRANSACTION: a transaction could not be opened or committed
//   - INVALID_VERSION: a StableIdentifier has an unparsable version
//   - STORE: a store read or write failed
//
// Recoverable codes (logged, the instance is skipped):
//   - MISSING_IDENTIFIER: an instance has no StableIdentifier
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Store names the store involved, if any.
	Store string

	// DBID identifies the affected instance, 0 if none.
	DBID int64

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes release errors.
type ErrorCode string

const (
	// ErrCodeIntegrityViolation indicates a change counter went backwards.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// ErrCodeActorUnresolved indicates the audit Person is missing.
	ErrCodeActorUnresolved ErrorCode = "ACTOR_UNRESOLVED"

	// ErrCodeTransaction indicates a begin or commit failure.
	ErrCodeTransaction ErrorCode = "TRANSACTION"

	// ErrCodeMissingIdentifier indicates an instance lacks a StableIdentifier.
	ErrCodeMissingIdentifier ErrorCode = "MISSING_IDENTIFIER"

	// ErrCodeInvalidVersion indicates an identifierVersion that is not a
	// non-negative integer.
	ErrCodeInvalidVersion ErrorCode = "INVALID_VERSION"

	// ErrCodeStore indicates a failed store operation.
	ErrCodeStore ErrorCode = "STORE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Store != "" && e.DBID != 0:
		msg += fmt.Sprintf(" (store=%s, db_id=%d)", e.Store, e.DBID)
	case e.Store != "":
		msg += fmt.Sprintf(" (store=%s)", e.Store)
	case e.DBID != 0:
		msg += fmt.Sprintf(" (db_id=%d)", e.DBID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsIntegrityError returns true if the error is a counter monotonicity violation.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool { return hasCode(err, ErrCodeIntegrityViolation) }

// IsActorError returns true if the audit Person could not be resolved.
func IsActorError(err error) bool { return hasCode(err, ErrCodeActorUnresolved) }

// IsTransactionError returns true if a transaction could not be opened or committed.
func IsTransactionError(err error) bool { return hasCode(err, ErrCodeTransaction) }

// IsMissingIdentifier returns true if an instance lacks a StableIdentifier.
func IsMissingIdentifier(err error) bool { return hasCode(err, ErrCodeMissingIdentifier) }

// IsInvalidVersion returns true if a StableIdentifier version cannot be parsed.
func IsInvalidVersion(err error) bool { return hasCode(err, ErrCodeInvalidVersion) }

// NewIntegrityError creates an Error for a counter that went backwards.
func NewIntegrityError(inst *ir.Instance, counter string, current, previous int) *Error {
	return &Error{
		Code: ErrCodeIntegrityViolation,
		Message: fmt.Sprintf("%s in current release has fewer %s entries than previous release (%d < %d)",
			inst, counter, current, previous),
		DBID: inst.DBID,
	}
}

// NewActorError creates an Error for an unresolvable audit Person.
func NewActorError(store string, personID int64, cause error) *Error {
	return &Error{
		Code:    ErrCodeActorUnresolved,
		Message: fmt.Sprintf("person %d cannot be resolved", personID),
		Store:   store,
		Err:     cause,
	}
}

// NewTransactionError creates an Error for a begin or commit failure.
func NewTransactionError(store, op string, cause error) *Error {
	return &Error{
		Code:    ErrCodeTransaction,
		Message: op + " failed",
		Store:   store,
		Err:     cause,
	}
}

// NewMissingIdentifierError creates an Error for an instance without a
// StableIdentifier in the given store.
func NewMissingIdentifierError(inst *ir.Instance, store string) *Error {
	return &Error{
		Code:    ErrCodeMissingIdentifier,
		Message: fmt.Sprintf("%s: could not locate StableIdentifier instance", inst),
		Store:   store,
		DBID:    inst.DBID,
	}
}

func newInvalidVersionError(si *ir.Instance, store string, cause error) *Error {
	return &Error{
		Code:    ErrCodeInvalidVersion,
		Message: fmt.Sprintf("%s has an invalid identifierVersion", si),
		Store:   store,
		DBID:    si.DBID,
		Err:     cause,
	}
}

func newStoreError(store, op string, dbID int64, cause error) *Error {
	return &Error{
		Code:    ErrCodeStore,
		Message: op,
		Store:   store,
		DBID:    dbID,
		Err:     cause,
	}
}
