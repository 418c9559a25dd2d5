package models

import (
	"time"

	"tablebook/src/types"

	"github.com/google/uuid"
)

// ReservationData is every mutable field of a reservation. The primary record and
// the per-user mirror both embed it so one value can be written to both tables.
type ReservationData struct {
	EventID     uint                    `gorm:"index" json:"event_id"`
	TableID     uint                    `json:"table_id"`
	TableNumber int                     `json:"table_number"`
	UserID      uint                    `gorm:"index" json:"user_id"`
	GuestName   string                  `json:"guest_name,omitempty"`
	GuestEmail  string                  `json:"guest_email,omitempty"`
	Status      types.ReservationStatus `gorm:"type:varchar(16);not null" json:"status"`
	TotalAmount float64                 `gorm:"type:numeric(12,2)" json:"total_amount"`
	Currency    string                  `gorm:"type:varchar(3)" json:"currency"`
	PaymentID   *string                 `json:"payment_id,omitempty"`
	AmountDue   float64                 `gorm:"type:numeric(12,2)" json:"amount_due,omitempty"`

	PreviousTableID      *uint      `json:"previous_table_id,omitempty"`
	PreviousTableNumber  *int       `json:"previous_table_number,omitempty"`
	TableChangedAt       *time.Time `json:"table_changed_at,omitempty"`
	TableChangeAmount    *float64   `gorm:"type:numeric(12,2)" json:"table_change_amount,omitempty"`
	TableChangeInvoiceID *string    `json:"table_change_invoice_id,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	RefundID           *string    `json:"refund_id,omitempty"`
	RefundAmount       *float64   `gorm:"type:numeric(12,2)" json:"refund_amount,omitempty"`
	RefundStatus       *string    `json:"refund_status,omitempty"`
	RefundFailed       bool       `json:"refund_failed,omitempty"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy *string    `json:"checked_in_by,omitempty"`

	ConfirmationEmailSent   bool       `json:"confirmation_email_sent"`
	ConfirmationEmailSentAt *time.Time `json:"confirmation_email_sent_at,omitempty"`
	ConfirmationEmailID     *string    `json:"confirmation_email_id,omitempty"`
}

type Reservation struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	ReservationData

	types.Timestamps
}

// UserReservation is the owner-scoped copy of a Reservation used for listings.
type UserReservation struct {
	ReservationID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	ReservationData

	types.Timestamps
}

func (r *Reservation) Mirror() *UserReservation {
	return &UserReservation{
		ReservationID:   r.ID,
		ReservationData: r.ReservationData,
		Timestamps: types.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}
}

func (r *Reservation) HasPayment() bool {
	return r.PaymentID != nil && *r.PaymentID != ""
}
