package schedule

// File is one uploaded timetable sheet. Rows[0] is the header row.
type File struct {
	FileName string     `json:"fileName"`
	Sheet    string     `json:"sheet"`
	Rows     [][]string `json:"rows"`
}

// Result summarizes an import.
type Result struct {
	FileName            string `json:"fileName"`
	Sheet               string `json:"sheet"`
	TotalRows           int    `json:"totalRows"`
	AuditoriesAdded     int    `json:"auditoriesAdded"`
	JournalEntriesAdded int    `json:"journalEntriesAdded"`
	RowsSkipped         int    `json:"rowsSkipped"`
}

// SubjectView is the wire shape of a subject.
type SubjectView struct {
	ID          int64  `json:"id"`
	SubName     string `json:"subName"`
	TeacherName string `json:"teacherName"`
}
