package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Code is a single attendance mark for one session date.
type Code string

const (
	OnTime Code = "O"
	Late   Code = "L"
	Absent Code = "A"
	Empty  Code = ""
)

// EarlyWindow is how long before the start time check-ins are accepted.
const EarlyWindow = 60

var (
	ErrTooEarly             = errors.New("check-in window has not opened yet")
	ErrInvalidConfiguration = errors.New("invalid late/absent thresholds")
	ErrDateNotFound         = errors.New("date is not a session date")
	ErrInvalidClock         = errors.New("invalid time of day")
	ErrInvalidDate          = errors.New("invalid date")
)

// Valid reports whether c is one of the known codes.
func (c Code) Valid() bool {
	switch c {
	case OnTime, Late, Absent, Empty:
		return true
	}
	return false
}

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, ErrInvalidClock
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return Clock{}, ErrInvalidClock
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return Clock{}, ErrInvalidClock
	}
	c := Clock{Hour: hour, Minute: minute}
	if !c.Valid() {
		return Clock{}, ErrInvalidClock
	}
	return c, nil
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Session is the schedule of a class: when it starts, how late is late,
// and the ordered list of dates attendance is tracked for.
type Session struct {
	Start         Clock
	LateMinutes   int
	AbsentMinutes int
	Dates         []string
	Location      *time.Location
}

// Record is one student's attendance, positionally aligned with Session.Dates.
type Record struct {
	Student string
	Codes   []Code
}

// Classify decides the code for a check-in at the given instant. The
// instant is read in its own location; use Session.Classify to convert
// into the class's zone first.
func Classify(start Clock, lateMinutes, absentMinutes int, at time.Time) (Code, error) {
	if lateMinutes < 0 || absentMinutes < lateMinutes || !start.Valid() {
		return Empty, ErrInvalidConfiguration
	}
	begin := start.Minutes()
	late := begin + lateMinutes
	absent := begin + absentMinutes
	now := at.Hour()*60 + at.Minute()

	switch {
	case now < begin-EarlyWindow:
		return Empty, ErrTooEarly
	case now <= late:
		return OnTime, nil
	case now <= absent:
		return Late, nil
	default:
		return Absent, nil
	}
}

// Classify classifies at in the session's time zone.
func (s Session) Classify(at time.Time) (Code, error) {
	return Classify(s.Start, s.LateMinutes, s.AbsentMinutes, at.In(s.location()))
}

// Today returns the session-local calendar date of t.
func (s Session) Today(t time.Time) string {
	return FormatDate(t.In(s.location()))
}

// LastClosedDate returns the latest session-local calendar date whose
// check-in window has closed by t. The window for a day closes one minute
// after its absent threshold, when Classify stops returning Late.
func (s Session) LastClosedDate(t time.Time) string {
	loc := s.location()
	local := t.In(loc)
	for back := 0; ; back++ {
		day := time.Date(local.Year(), local.Month(), local.Day()-back, s.Start.Hour, s.Start.Minute, 0, 0, loc)
		closes := day.Add(time.Duration(s.AbsentMinutes+1) * time.Minute)
		if !closes.After(t) {
			return FormatDate(day)
		}
	}
}

// IndexOf returns the position of date in the session, or -1.
func (s Session) IndexOf(date string) int {
	for i, d := range s.Dates {
		if d == date {
			return i
		}
	}
	return -1
}

func (s Session) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Padded returns a copy of codes extended with Empty up to n entries.
func Padded(codes []Code, n int) []Code {
	size := len(codes)
	if n > size {
		size = n
	}
	out := make([]Code, size)
	copy(out, codes)
	return out
}

// RecordCheckin writes code at the position of date. The input record is
// left untouched; the result is always padded to the session's length.
func RecordCheckin(session Session, record Record, date string, code Code) (Record, error) {
	idx := session.IndexOf(date)
	if idx < 0 {
		return record, ErrDateNotFound
	}
	codes := Padded(record.Codes, len(session.Dates))
	codes[idx] = code
	return Record{Student: record.Student, Codes: codes}, nil
}

// SweepAbsences marks every unrecorded slot for today as absent. Slots
// that already hold a code are kept. When today is not a session date the
// records are returned padded but otherwise unchanged.
func SweepAbsences(session Session, records []Record, today string) []Record {
	idx := session.IndexOf(today)
	out := make([]Record, len(records))
	for i, rec := range records {
		codes := Padded(rec.Codes, len(session.Dates))
		if idx >= 0 && codes[idx] == Empty {
			codes[idx] = Absent
		}
		out[i] = Record{Student: rec.Student, Codes: codes}
	}
	return out
}

// Changed reports whether the sweep would modify rec for today.
func Changed(session Session, rec Record, today string) bool {
	idx := session.IndexOf(today)
	if idx < 0 {
		return false
	}
	return idx >= len(rec.Codes) || rec.Codes[idx] == Empty
}
