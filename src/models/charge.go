package models

import (
	"tablebook/src/types"

	"github.com/google/uuid"
)

// AppliedCharge records a table change charge that paid for a move. A charge id
// appears at most once.
type AppliedCharge struct {
	ChargeID string `gorm:"primarykey" json:"charge_id"`

	ReservationID uuid.UUID `gorm:"type:uuid;index" json:"reservation_id"`
	FromTableID   uint      `json:"from_table_id"`
	ToTableID     uint      `json:"to_table_id"`
	Amount        float64   `gorm:"type:numeric(12,2)" json:"amount"`

	types.Timestamps
}
