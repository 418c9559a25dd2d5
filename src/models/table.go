package models

import (
	"tablebook/src/types"

	"github.com/google/uuid"
)

// Table is a bookable table for one event. Reserved and ReservationID are
// written only by the lifecycle engine.
type Table struct {
	ID       uint    `gorm:"primarykey" json:"id"`
	EventID  uint    `gorm:"index" json:"event_id"`
	Number   int     `json:"number"`
	Price    float64 `gorm:"type:numeric(12,2)" json:"price"`
	Capacity int     `json:"capacity"`

	Reserved      bool       `json:"reserved"`
	ReservedBy    *uint      `json:"reserved_by,omitempty"`
	ReservationID *uuid.UUID `gorm:"type:uuid" json:"reservation_id,omitempty"`

	types.Timestamps
}

func (t *Table) HeldBy(reservationID uuid.UUID) bool {
	return t.Reserved && t.ReservationID != nil && *t.ReservationID == reservationID
}
