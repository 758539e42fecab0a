package model

import "time"

// Booking represents a confirmed reservation for a dated time slot.
type Booking struct {
	ID                int64     `gorm:"primaryKey"`
	Reference         string    `gorm:"uniqueIndex;size:36;not null"` // public booking code
	Name              string    `gorm:"size:128;not null"`
	Phone             string    `gorm:"size:32"`
	Email             string    `gorm:"size:256"`
	Address           string    `gorm:"size:256"`
	City              string    `gorm:"size:128"`
	Zipcode           string    `gorm:"size:16"`
	Date              string    `gorm:"size:10;not null;index:idx_bookings_slot"`
	TimeSlot          string    `gorm:"size:16;not null;index:idx_bookings_slot"`
	ContactPreference string    `gorm:"size:16"`
	DepositReceived   bool      `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}
