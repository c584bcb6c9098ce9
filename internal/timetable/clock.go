package timetable

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ZoneClock reads the system clock in a fixed named zone.
type ZoneClock struct {
	loc *time.Location
}

// NewZoneClock loads the named zone, e.g. "Asia/Almaty".
func NewZoneClock(zone string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", zone, err)
	}
	return &ZoneClock{loc: loc}, nil
}

// Now returns the current time in the clock's zone.
func (c *ZoneClock) Now() time.Time { return time.Now().In(c.loc) }

// Location returns the clock's zone.
func (c *ZoneClock) Location() *time.Location { return c.loc }

// FixedClock always returns the same instant. Used by tests and the probe command.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }

// ISOWeekday maps time.Weekday to 1 = Monday ... 7 = Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
