package services

import "errors"

var (
	// ErrValidation rejects bad input before any gateway call.
	ErrValidation = errors.New("VALIDATION_ERROR")

	// ErrPaymentNotFound means no ledger row matches the given id.
	ErrPaymentNotFound = errors.New("PAYMENT_NOT_FOUND")

	// ErrLedgerConflict means the compare-and-swap expected states did not
	// match the stored row. Stale or duplicate deliveries end up here.
	ErrLedgerConflict = errors.New("LEDGER_CONFLICT")

	// ErrParentNotCompleted rejects a refund whose parent payment is not in
	// a terminal COMPLETED state.
	ErrParentNotCompleted = errors.New("PARENT_NOT_COMPLETED")
)
