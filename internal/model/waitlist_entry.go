package model

import "time"

// WaitlistEntry represents a customer waiting for a slot to open up.
// The autoincrement ID doubles as the insertion sequence number: entries for
// the same (date, time_slot) are ordered by ID, which is free of the
// clock-skew ambiguity that ordering by CreatedAt would have.
type WaitlistEntry struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	Phone     string    `gorm:"size:32"`
	Email     string    `gorm:"size:256"`
	Date      string    `gorm:"size:10;not null;index:idx_waitlist_slot"`
	TimeSlot  string    `gorm:"size:16;not null;index:idx_waitlist_slot"`
	CreatedAt time.Time `gorm:"not null"`
}
