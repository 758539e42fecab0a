package model

import "time"

// SlotCount is the durable ledger row for one (date, time_slot) pair. Slots
// with no row have zero active reservations.
type SlotCount struct {
	Date      string `gorm:"primaryKey;size:10"`
	TimeSlot  string `gorm:"primaryKey;size:16"`
	Count     int    `gorm:"not null"`
	UpdatedAt time.Time
}
