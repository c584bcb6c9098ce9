package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"schedule-bridge-backend/internal/timetable"
)

var (
	corpusRe    = regexp.MustCompile(`^([А-Яа-яA-Za-z])\s*[-–—]`)
	corpusAltRe = regexp.MustCompile(`(?i)(?:лаб|корпус)\s+([А-Яа-яA-Za-z])`)
	lessonRe    = regexp.MustCompile(`(\d{1,2})[.:;](\d{2})\s*[-–—]\s*(\d{1,2})[.:;](\d{2})`)
	numberRe    = regexp.MustCompile(`\d+`)
)

var weekdays = map[string]int{
	"понедельник": 1, "пн": 1,
	"вторник": 2, "вт": 2,
	"среда": 3, "ср": 3,
	"четверг": 4, "чт": 4,
	"пятница": 5, "пт": 5,
	"суббота": 6, "сб": 6,
	"воскресенье": 7, "вс": 7,
}

// DayOfWeek maps a Russian weekday name to its ISO number, or 0 if unknown.
func DayOfWeek(raw string) int {
	return weekdays[strings.ToLower(strings.TrimSpace(raw))]
}

// Lesson is a parsed "start - end" time cell.
type Lesson struct {
	Start timetable.TimeOfDay
	End   timetable.TimeOfDay
}

// Minutes returns the lesson length.
func (l Lesson) Minutes() int {
	return int(time.Duration(l.End-l.Start) / time.Minute)
}

// LessonTime parses cells such as "8:30-10:00", "8.30 – 10.00" or "08;30—10;00".
// The end must come after the start.
func LessonTime(raw string) (Lesson, bool) {
	m := lessonRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Lesson{}, false
	}
	start, ok := clock(m[1], m[2])
	if !ok {
		return Lesson{}, false
	}
	end, ok := clock(m[3], m[4])
	if !ok || end <= start {
		return Lesson{}, false
	}
	return Lesson{Start: start, End: end}, true
}

func clock(hh, mm string) (timetable.TimeOfDay, bool) {
	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return 0, false
	}
	return timetable.At(h, m), true
}

// Corpus extracts the building letter from a room name: "А-201" and
// "Лаб Д корпус" give "А" and "Д". Returns "" when no letter is found.
func Corpus(room string) string {
	room = strings.TrimSpace(room)
	if m := corpusRe.FindStringSubmatch(room); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := corpusAltRe.FindStringSubmatch(room); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// RoomNumber returns the first run of digits in a room name ("Д-301а" gives 301).
func RoomNumber(room string) (int, bool) {
	digits := numberRe.FindString(room)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Column returns the index of the first header cell containing keyword,
// case-insensitively, or -1.
func Column(header []string, keyword string) int {
	keyword = strings.ToLower(keyword)
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), keyword) {
			return i
		}
	}
	return -1
}

// Cell returns row[i] or "" when the row is too short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// MergeTeachers joins two comma-separated teacher lists. Names are trimmed,
// duplicates are dropped case-insensitively and the first spelling wins.
func MergeTeachers(existing, incoming string) string {
	seen := make(map[string]struct{})
	var names []string
	for _, list := range []string{existing, incoming} {
		for _, name := range strings.Split(list, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
