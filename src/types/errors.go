package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyCancelled  = errors.New("reservation already cancelled")
	ErrAlreadyCheckedIn  = errors.New("reservation already checked in")
	ErrTableUnavailable  = errors.New("table unavailable")
	ErrInvalidPayment    = errors.New("invalid payment")
	ErrPaymentIncomplete = errors.New("payment incomplete")
	ErrMetadataMismatch  = errors.New("payment metadata mismatch")
	ErrNoPaymentOnFile   = errors.New("no payment on file")
	ErrRefundFailed      = errors.New("refund failed")
	ErrGateway           = errors.New("payment gateway error")
	ErrStatusConflict    = errors.New("status conflict")
	ErrInvalidRequest    = errors.New("invalid request")

	// ErrChargeApplied marks a charge that already paid for an earlier table
	// change. It is a metadata mismatch for any later move.
	ErrChargeApplied = fmt.Errorf("charge already applied: %w", ErrMetadataMismatch)
)

// AlreadyCheckedInError carries who checked the guest in and when.
type AlreadyCheckedInError struct {
	CheckedInBy string
	CheckedInAt time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("%s by %s at %s", ErrAlreadyCheckedIn.Error(), e.CheckedInBy, e.CheckedInAt.Format(time.RFC3339))
}

func (e *AlreadyCheckedInError) Is(target error) bool {
	return target == ErrAlreadyCheckedIn
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrAlreadyCancelled, "already_cancelled"},
	{ErrAlreadyCheckedIn, "already_checked_in"},
	{ErrTableUnavailable, "table_unavailable"},
	{ErrInvalidPayment, "invalid_payment"},
	{ErrPaymentIncomplete, "payment_incomplete"},
	{ErrChargeApplied, "charge_already_applied"},
	{ErrMetadataMismatch, "metadata_mismatch"},
	{ErrNoPaymentOnFile, "no_payment_on_file"},
	{ErrRefundFailed, "refund_failed"},
	{ErrStatusConflict, "status_conflict"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrGateway, "gateway_error"},
}

// ErrorCode maps err onto a stable API code. Unknown errors yield "internal".
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
