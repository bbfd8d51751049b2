package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Embedded zone database so STORE_TIMEZONE resolves on minimal images.
	_ "time/tzdata"
)

// DefaultTimezone is the store's local zone when none is configured.
const DefaultTimezone = "America/Chicago"

// ErrParse is wrapped by every date or slot parse failure.
var ErrParse = errors.New("delivery: parse error")

const dateOnlyLayout = "2006-01-02"

// LoadLocation resolves name, falling back to DefaultTimezone and finally UTC.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// ParseDate parses a delivery date in loc. A bare "YYYY-MM-DD" is anchored at
// local noon so that no UTC offset can roll it onto a neighbouring calendar day.
// Values that already carry a time component are parsed as given.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrParse)
	}
	if len(s) == len(dateOnlyLayout) {
		t, err := time.ParseInLocation(dateOnlyLayout+"T15:04:05", s+"T12:00:00", loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: date %q", ErrParse, raw)
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrParse, raw)
}

// FormatDate renders t as a calendar date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateOnlyLayout)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// On returns the instant of c on the calendar day of date, in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = date.Location()
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// String renders the clock in 24-hour form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseSlot parses "h:mm AM/PM - h:mm AM/PM" into its start and end clocks.
func ParseSlot(raw string) (start, end Clock, err error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("\u2013", "-", "\u2014", "-").Replace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Clock{}, Clock{}, fmt.Errorf("%w: slot %q", ErrParse, raw)
	}
	start, err = parseClock(parts[0])
	if err != nil {
		return Clock{}, Clock{}, fmt.Errorf("%w: slot %q", ErrParse, raw)
	}
	end, err = parseClock(parts[1])
	if err != nil {
		return Clock{}, Clock{}, fmt.Errorf("%w: slot %q", ErrParse, raw)
	}
	return start, end, nil
}

func parseClock(s string) (Clock, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range []string{"3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return Clock{}, ErrParse
}

// IsExpired reports whether now is past the start of the slot on the delivery
// date. Input that cannot be parsed counts as expired.
func IsExpired(date, slot string, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	day, err := ParseDate(date, loc)
	if err != nil {
		return true
	}
	start, _, err := ParseSlot(slot)
	if err != nil {
		return true
	}
	return now.After(start.On(day, loc))
}
