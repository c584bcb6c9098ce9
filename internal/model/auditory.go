package model

import "time"

// Auditory is a bookable room. Number is nil when the room name carries no digits.
type Auditory struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	Number    *int      `gorm:"index"`
	Corpus    string    `gorm:"size:32;index"`
	Category  string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Journal []AuditoryJournal `gorm:"foreignKey:AudID"`
}

// TableName keeps the table name shared with the solver's database.
func (Auditory) TableName() string { return "auditory" }
