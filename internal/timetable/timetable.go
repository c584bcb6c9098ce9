package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const day = 24 * time.Hour

// TimeOfDay is a wall-clock offset from midnight, in [0, 24h).
type TimeOfDay time.Duration

// At builds a TimeOfDay from hours and minutes.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).normalize()
}

// Of extracts the time of day of t in t's own location, keeping sub-minute precision.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay accepts "HH:mm" and "H:mm".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return At(t.Hour(), t.Minute()), nil
}

// Add moves the time of day by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return TimeOfDay(time.Duration(t) + d).normalize()
}

// After reports whether t is strictly later than u.
func (t TimeOfDay) After(u TimeOfDay) bool { return t > u }

// Minutes returns the whole minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(time.Duration(t) / time.Minute) }

// String formats as "HH:mm".
func (t TimeOfDay) String() string {
	m := t.Minutes()
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (t TimeOfDay) normalize() TimeOfDay {
	d := time.Duration(t) % day
	if d < 0 {
		d += day
	}
	return TimeOfDay(d)
}

// ClassSlot is one fixed class start of the daily grid.
type ClassSlot struct {
	Start TimeOfDay
}

func (s ClassSlot) String() string { return s.Start.String() }

// Timetable is the immutable daily grid of class starts plus the grace window.
type Timetable struct {
	slots []ClassSlot
	grace time.Duration
}

// New builds a timetable; slots are sorted chronologically.
func New(starts []TimeOfDay, grace time.Duration) *Timetable {
	slots := make([]ClassSlot, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, ClassSlot{Start: s})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return &Timetable{slots: slots, grace: grace}
}

// Parse builds a timetable from "HH:mm" strings.
func Parse(starts []string, grace time.Duration) (*Timetable, error) {
	parsed := make([]TimeOfDay, 0, len(starts))
	for _, s := range starts {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, t)
	}
	return New(parsed, grace), nil
}

// Slots returns a copy of the grid.
func (tt *Timetable) Slots() []ClassSlot {
	out := make([]ClassSlot, len(tt.slots))
	copy(out, tt.slots)
	return out
}

// Grace returns the grace window.
func (tt *Timetable) Grace() time.Duration { return tt.grace }

// Last returns the latest slot of the day.
func (tt *Timetable) Last() (ClassSlot, bool) {
	if len(tt.slots) == 0 {
		return ClassSlot{}, false
	}
	return tt.slots[len(tt.slots)-1], true
}

// FindNearestClassStart returns the first slot s, in chronological order, with
// now <= s+grace. The boundary is inclusive. ok is false once every slot of the
// day has lapsed; there is no wraparound to the next day.
func (tt *Timetable) FindNearestClassStart(now TimeOfDay) (slot ClassSlot, ok bool) {
	for _, s := range tt.slots {
		deadline := TimeOfDay(time.Duration(s.Start) + tt.grace)
		if !now.After(deadline) {
			return s, true
		}
	}
	return ClassSlot{}, false
}
