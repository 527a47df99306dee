package errors

import (
	"errors"
	"fmt"
)

var (
	// Listing errors
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingAlreadyExists = errors.New("listing already exists")

	// Offer validation errors
	ErrSelfTrade  = errors.New("cannot bid on your own listing")
	ErrBidTooLow  = errors.New("bid is below the listing price")
	ErrZeroAmount = errors.New("amount must be greater than zero")

	// Payout errors
	ErrInvalidRoyaltySpec = errors.New("invalid royalty specification")
	ErrAmountOverflow     = errors.New("amount arithmetic overflow")

	// Settlement errors
	ErrSagaNotFound           = errors.New("settlement not found")
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	ErrUnknownCall            = errors.New("callback does not match an outstanding call")
	ErrStaleRecord            = errors.New("settlement record changed since it was read")

	// Ledger errors
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// Asset factory errors
	ErrAssetNotFound  = errors.New("asset not found")
	ErrDuplicateAsset = errors.New("asset already exists")
	ErrInvalidAssetID = errors.New("invalid asset id")
	ErrDepositTooLow  = errors.New("attached deposit is too low")

	// Package/vesting errors
	ErrUnknownPackage   = errors.New("unknown package tier")
	ErrPriceMismatch    = errors.New("attached payment does not match the package price")
	ErrScheduleInactive = errors.New("vesting schedule is not active")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
