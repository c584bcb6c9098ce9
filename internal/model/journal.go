package model

// Journal row origins as stored in time_status.
const (
	// TimeStatusScheduled marks a row created from an imported timetable.
	TimeStatusScheduled = 1
	// TimeStatusBooked marks a row the solver wrote for a bot booking.
	TimeStatusBooked = 2
)

// AuditoryJournal is one weekly occupancy window of a room. Times are "HH:mm"
// in the campus time zone; DayOfWeek is ISO (Monday=1 .. Sunday=7).
type AuditoryJournal struct {
	ID         int64  `gorm:"primaryKey"`
	AudID      int64  `gorm:"column:aud_id;index;not null"`
	DayOfWeek  int    `gorm:"index;not null"`
	StartTime  string `gorm:"size:5;not null"`
	EndTime    string `gorm:"size:5;not null"`
	Duration   int    `gorm:"not null"`
	TimeStatus int    `gorm:"not null"`

	// Associations
	Auditory Auditory `gorm:"foreignKey:AudID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the table name shared with the solver's database.
func (AuditoryJournal) TableName() string { return "auditory_journal" }
