package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}

func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &a)
}

// String returns the value at key when it holds a string.
func (a JSONB) String(key string) string {
	if a == nil {
		return ""
	}
	s, _ := a[key].(string)
	return s
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type UserRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateReservationRequestBody struct {
	EventID     uint    `json:"event_id" binding:"required"`
	TableID     uint    `json:"table_id" binding:"required"`
	UserID      uint    `json:"user_id" binding:"required"`
	GuestName   string  `json:"guest_name" binding:"required"`
	GuestEmail  string  `json:"guest_email" binding:"required,email"`
	PaymentID   string  `json:"payment_id" binding:"required"`
	TotalAmount float64 `json:"total_amount" binding:"required,gt=0,money"`
}

type CancelReservationRequestBody struct {
	Reason       string  `json:"reason,omitempty"`
	RefundAmount float64 `json:"refund_amount,omitempty" binding:"omitempty,gte=0,money"`
	StaffName    string  `json:"staff_name,omitempty"`
}

type ChangeTableRequestBody struct {
	TableID          uint   `json:"table_id" binding:"required"`
	PaymentReference string `json:"payment_reference,omitempty"`
	DeferPayment     bool   `json:"defer_payment,omitempty"`
}

type CheckInRequestBody struct {
	StaffName string `json:"staff_name,omitempty"`
}

type SendConfirmationRequestBody struct {
	ForceResend bool `json:"force_resend,omitempty"`
}

type ReservationStatus string

const (
	RESERVATION_PENDING    ReservationStatus = "pending"
	RESERVATION_CONFIRMED  ReservationStatus = "confirmed"
	RESERVATION_CANCELLED  ReservationStatus = "cancelled"
	RESERVATION_CHECKED_IN ReservationStatus = "checked-in"
)

type RefundStatus string

const (
	REFUND_PENDING   RefundStatus = "pending"
	REFUND_SUCCEEDED RefundStatus = "succeeded"
	REFUND_FAILED    RefundStatus = "failed"
)

type RefundKind string

const (
	REFUND_CANCELLATION RefundKind = "cancellation"
	REFUND_TABLE_CHANGE RefundKind = "table_change"
)

type EffectStatus string

const (
	EFFECT_PENDING EffectStatus = "pending"
	EFFECT_DONE    EffectStatus = "done"
	EFFECT_FAILED  EffectStatus = "failed"
)

type UserRole string

const (
	ROLE_GUEST UserRole = "guest"
	ROLE_STAFF UserRole = "staff"
	ROLE_ADMIN UserRole = "admin"
)

type Handler func(payload string)
