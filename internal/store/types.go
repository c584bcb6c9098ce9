package store

// JournalFilter selects journal rows of one auditory. Zero-valued optional
// fields match any value.
type JournalFilter struct {
	AudID      int64
	DayOfWeek  int
	StartTime  string
	EndTime    string
	TimeStatus int
}
