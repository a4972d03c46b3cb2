package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("doctor not found")
	ErrInvalidSchedule = errors.New("invalid availability schedule")
	ErrInvalidDoctor   = errors.New("invalid doctor")
)

// Weekday numbers match time.Weekday so WeekdayOf is a plain conversion.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{
	Sunday:    "Sunday",
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// ParseWeekday accepts full English day names, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	for i, name := range weekdayNames {
		if strings.EqualFold(name, s) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, s)
}

// WeekdayOf returns the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, int(d))
	}
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: weekday must be a string", ErrInvalidSchedule)
	}
	w, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = w
	return nil
}

// ScheduleEntry is one working day, e.g. {"day": "Monday", "time": "9-17"}.
type ScheduleEntry struct {
	Day  Weekday `json:"day"`
	Time string  `json:"time" validate:"required,hourrange"`
}

// Hours parses the entry's "start-end" range. An end hour lower than the
// start hour is read as a PM hour and gets 12 added.
func (e ScheduleEntry) Hours() (start, end int, err error) {
	parts := strings.Split(e.Time, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %s hours %q must look like 9-17", ErrInvalidSchedule, e.Day, e.Time)
	}
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s start hour %q", ErrInvalidSchedule, e.Day, parts[0])
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s end hour %q", ErrInvalidSchedule, e.Day, parts[1])
	}
	if end < start {
		end += 12
	}
	if start < 0 || end > 24 {
		return 0, 0, fmt.Errorf("%w: %s hours %q out of range", ErrInvalidSchedule, e.Day, e.Time)
	}
	return start, end, nil
}

// AvailabilitySchedule holds at most one entry per weekday.
type AvailabilitySchedule []ScheduleEntry

// For returns the entry for day, if the doctor works that day.
func (s AvailabilitySchedule) For(day Weekday) (ScheduleEntry, bool) {
	for _, e := range s {
		if e.Day == day {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}

func (s AvailabilitySchedule) Validate() error {
	seen := make(map[Weekday]bool, len(s))
	for _, e := range s {
		if !e.Day.Valid() {
			return fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, int(e.Day))
		}
		if seen[e.Day] {
			return fmt.Errorf("%w: %s listed more than once", ErrInvalidSchedule, e.Day)
		}
		seen[e.Day] = true
		start, end, err := e.Hours()
		if err != nil {
			return err
		}
		if start >= end {
			return fmt.Errorf("%w: %s hours %q are empty", ErrInvalidSchedule, e.Day, e.Time)
		}
	}
	return nil
}

type Doctor struct {
	ID                   uuid.UUID            `json:"id"`
	FullName             string               `json:"fullName"`
	Specialization       string               `json:"specialization,omitempty"`
	AvailabilitySchedule AvailabilitySchedule `json:"availabilitySchedule"`
	// AppointmentDuration is in minutes.
	AppointmentDuration int `json:"appointmentDuration"`
	// AppointmentFee is in minor currency units.
	AppointmentFee int64     `json:"appointmentFee"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
