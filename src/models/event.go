package models

import (
	"time"

	"tablebook/src/types"
)

type Event struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	Name     string    `json:"name,omitempty"`
	Venue    string    `json:"venue,omitempty"`
	StartsAt time.Time `json:"starts_at,omitempty"`

	Tables []Table `gorm:"foreignKey:event_id" json:"tables,omitempty"`

	types.Timestamps
}
