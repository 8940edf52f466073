package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned when the amount is not a positive value with at most 2 decimal places
	ErrInvalidAmount = errors.New("invalid amount: must be positive with at most 2 decimal places")

	// ErrRecipientNotFound is returned when the destination account doesn't exist
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInsufficientBalance is returned when the source balance doesn't cover the amount
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyFinalized is returned when a finalized record is finalized with a different status
	ErrAlreadyFinalized = errors.New("transfer already finalized with a different status")

	// ErrAccountNotFound is returned by stores when an account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferNotFound is returned by stores when a transfer record doesn't exist
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrUnavailable is returned when the underlying store can't serve the request
	ErrUnavailable = errors.New("store unavailable")

	// ErrAccountAlreadyExists is returned when the derived identifier is already taken
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInvalidAccountDetails is returned when registration or lookup input is blank
	ErrInvalidAccountDetails = errors.New("invalid account details")

	// ErrInvalidStatus is returned when finalizing with a non-terminal status
	ErrInvalidStatus = errors.New("invalid transfer status")

	// ErrTransferFailed matches any *TransferFailedError
	ErrTransferFailed = errors.New("transfer failed")

	// ErrCompensationFailed matches any *CompensationFailedError
	ErrCompensationFailed = errors.New("transfer compensation failed")
)

// TransferFailedError reports a transfer that failed after its intent was recorded.
// Any applied debit has been reversed; the record is finalized as failed.
type TransferFailedError struct {
	TransferID string
	Cause      error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer %s failed: %v", e.TransferID, e.Cause)
}

func (e *TransferFailedError) Unwrap() error { return e.Cause }

func (e *TransferFailedError) Is(target error) bool { return target == ErrTransferFailed }

// CompensationFailedError reports a debit that could not be reversed after the credit failed.
// The ledger is inconsistent until reconciled out of band.
type CompensationFailedError struct {
	TransferID        string
	Cause             error
	CompensationCause error
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("transfer %s failed: %v; compensation failed: %v", e.TransferID, e.Cause, e.CompensationCause)
}

func (e *CompensationFailedError) Unwrap() []error { return []error{e.Cause, e.CompensationCause} }

func (e *CompensationFailedError) Is(target error) bool { return target == ErrCompensationFailed }

// ErrorKind is a stable, caller-visible classification of an error.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindInvalidAmount         ErrorKind = "INVALID_AMOUNT"
	KindRecipientNotFound     ErrorKind = "RECIPIENT_NOT_FOUND"
	KindInsufficientBalance   ErrorKind = "INSUFFICIENT_BALANCE"
	KindAlreadyFinalized      ErrorKind = "ALREADY_FINALIZED"
	KindTransferFailed        ErrorKind = "TRANSFER_FAILED"
	KindCompensationFailed    ErrorKind = "COMPENSATION_FAILED"
	KindAccountNotFound       ErrorKind = "ACCOUNT_NOT_FOUND"
	KindTransferNotFound      ErrorKind = "TRANSFER_NOT_FOUND"
	KindAccountAlreadyExists  ErrorKind = "ACCOUNT_ALREADY_EXISTS"
	KindInvalidAccountDetails ErrorKind = "INVALID_ACCOUNT_DETAILS"
	KindInvalidStatus         ErrorKind = "INVALID_STATUS"
	KindUnavailable           ErrorKind = "UNAVAILABLE"
	KindInternal              ErrorKind = "INTERNAL"
)

// KindOf classifies err. Mid-transfer failures are checked first so that the
// cause they wrap never masks them.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, ErrCompensationFailed):
		return KindCompensationFailed
	case errors.Is(err, ErrTransferFailed):
		return KindTransferFailed
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrRecipientNotFound):
		return KindRecipientNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrAlreadyFinalized):
		return KindAlreadyFinalized
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrTransferNotFound):
		return KindTransferNotFound
	case errors.Is(err, ErrAccountAlreadyExists):
		return KindAccountAlreadyExists
	case errors.Is(err, ErrInvalidAccountDetails):
		return KindInvalidAccountDetails
	case errors.Is(err, ErrInvalidStatus):
		return KindInvalidStatus
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
