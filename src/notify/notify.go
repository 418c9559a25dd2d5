// Package notify delivers guest emails and staff alerts for reservation events.
package notify

import (
	"context"
	"time"

	"tablebook/src/lib"

	"github.com/google/uuid"
)

type TableChange struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	FromTable     int       `json:"from_table"`
	ToTable       int       `json:"to_table"`
	Delta         float64   `json:"delta"`
	NewTotal      float64   `json:"new_total"`
	RefundAmount  float64   `json:"refund_amount,omitempty"`
	RefundFailed  bool      `json:"refund_failed,omitempty"`
	AmountDue     float64   `json:"amount_due,omitempty"`
	Currency      string    `json:"currency"`
}

type PaymentRequired struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	FromTable     int       `json:"from_table"`
	ToTable       int       `json:"to_table"`
	AmountDue     float64   `json:"amount_due"`
	Currency      string    `json:"currency"`
	ChargeID      string    `json:"charge_id"`
}

type Confirmation struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	EventName     string    `json:"event_name,omitempty"`
	TableNumber   int       `json:"table_number"`
	TotalAmount   float64   `json:"total_amount"`
	Currency      string    `json:"currency"`
}

type CheckinAlert struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	EventID       uint      `json:"event_id"`
	GuestName     string    `json:"guest_name"`
	TableNumber   int       `json:"table_number"`
	StaffName     string    `json:"staff_name"`
	CheckedInAt   time.Time `json:"checked_in_at"`
}

type Cancellation struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	TableNumber   int       `json:"table_number"`
	Reason        string    `json:"reason,omitempty"`
	RefundAmount  float64   `json:"refund_amount,omitempty"`
	Currency      string    `json:"currency"`
}

// Dispatcher is the notification surface used by the lifecycle engine.
// Only SendReservationConfirmation reports a message id; the caller persists it.
type Dispatcher interface {
	SendTableChangeNotification(ctx context.Context, n TableChange) error
	SendTableChangePaymentRequired(ctx context.Context, n PaymentRequired) error
	SendReservationConfirmation(ctx context.Context, n Confirmation) (string, error)
	NotifyCheckinAlert(ctx context.Context, n CheckinAlert) error
	SendCancellationNotification(ctx context.Context, n Cancellation) error
}

// Sender delivers one email and returns the transport's message id.
type Sender interface {
	Send(ctx context.Context, msg *lib.SendMailInput) (string, error)
}

// Alerter pushes a short operational message to venue staff.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}
