package models

import (
	"tablebook/src/types"

	"github.com/google/uuid"
)

// Refund is an append-only audit row for every refund the engine attempts.
type Refund struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	ReservationID   uuid.UUID          `gorm:"type:uuid;index" json:"reservation_id"`
	GatewayRefundID *string            `json:"gateway_refund_id,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id"`
	Amount          float64            `gorm:"type:numeric(12,2)" json:"amount"`
	Status          types.RefundStatus `gorm:"type:varchar(16)" json:"status"`
	Kind            types.RefundKind   `gorm:"type:varchar(16)" json:"kind"`
	Reason          string             `json:"reason,omitempty"`
	IdempotencyKey  string             `gorm:"uniqueIndex" json:"-"`

	types.Timestamps
}
