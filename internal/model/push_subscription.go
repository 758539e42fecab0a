package model

import "time"

// PushSubscription holds the information for an admin's browser push
// subscription. Admins subscribed here receive deposit-deadline alerts and
// waitlist promotion notices.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
