package models

import "fmt"

// ErrorKind is a machine-readable failure code surfaced to callers so they
// can distinguish "fix your input" from "retry with different input" from
// "give up".
type ErrorKind string

const (
	// Validation failures - nothing was persisted, input is malformed.
	ErrReferenceRequired      ErrorKind = "reference_required"
	ErrInvalidQuantity        ErrorKind = "invalid_quantity"
	ErrInvalidAmount          ErrorKind = "invalid_amount"
	ErrReceiptDateOutOfRange  ErrorKind = "receipt_date_out_of_range"
	ErrInsufficientAmount     ErrorKind = "insufficient_amount"
	ErrValidationMismatch     ErrorKind = "validation_mismatch"
	ErrVoucherInvalid         ErrorKind = "voucher_invalid"
	ErrRollbackConfirmation   ErrorKind = "rollback_confirmation_required"

	// Conflict failures - valid input lost a race or hit a terminal state.
	ErrDuplicateReference ErrorKind = "duplicate_reference"
	ErrSoldOut            ErrorKind = "sold_out"
	ErrVoucherExhausted   ErrorKind = "voucher_exhausted"
	ErrAlreadyDecided     ErrorKind = "already_decided"
	ErrRollbackBlocked    ErrorKind = "rollback_blocked"
	ErrOverpayment        ErrorKind = "overpayment"
	ErrSessionConflict    ErrorKind = "session_conflict"
	ErrTripNotBookable    ErrorKind = "trip_not_bookable"
	ErrTicketNotCheckable ErrorKind = "ticket_not_checkable"

	// Lookup failures.
	ErrNotFound ErrorKind = "not_found"

	// Internal failures - invariant would have been violated, operation aborted.
	ErrInternal ErrorKind = "internal_error"
)

// DomainError carries an ErrorKind alongside a human-readable message.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewDomainError creates a DomainError with a formatted message.
func NewDomainError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error, returning ErrInternal for
// anything that is not a DomainError.
func KindOf(err error) ErrorKind {
	if de, ok := err.(*DomainError); ok {
		return de.Kind
	}
	return ErrInternal
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := err.(*DomainError)
	return ok && de.Kind == kind
}

// IsConflict reports whether the error is a conflict-class failure, i.e. the
// caller may retry with different input (a new reference) but not the same one.
func IsConflict(err error) bool {
	switch KindOf(err) {
	case ErrDuplicateReference, ErrSoldOut, ErrVoucherExhausted,
		ErrAlreadyDecided, ErrRollbackBlocked, ErrOverpayment,
		ErrSessionConflict, ErrTripNotBookable, ErrTicketNotCheckable:
		return true
	}
	return false
}
