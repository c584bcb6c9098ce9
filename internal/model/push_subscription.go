package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// An empty Corpus receives cancellations for every building.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Corpus    string    `gorm:"size:32;index"`
	CreatedAt time.Time `gorm:"not null"`
}
