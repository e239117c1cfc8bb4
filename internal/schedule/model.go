package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Weekday is the three-letter day key used in doctor work templates (MON..SUN).
type Weekday string

const (
	Mon Weekday = "MON"
	Tue Weekday = "TUE"
	Wed Weekday = "WED"
	Thu Weekday = "THU"
	Fri Weekday = "FRI"
	Sat Weekday = "SAT"
	Sun Weekday = "SUN"
)

var weekdayOrder = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

// WeekdayOf maps a calendar date to its template key.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Mon
	case time.Tuesday:
		return Tue
	case time.Wednesday:
		return Wed
	case time.Thursday:
		return Thu
	case time.Friday:
		return Fri
	case time.Saturday:
		return Sat
	default:
		return Sun
	}
}

// ParseWeekday validates a template key coming from the API or the database.
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range weekdayOrder {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// TimeOfDay is minutes since midnight on the clinic-local clock.
type TimeOfDay int

var errBadClock = errors.New("time must be HH:MM between 00:00 and 23:59")

// ParseTimeOfDay parses an "HH:MM" clock string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, errBadClock
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, errBadClock
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errBadClock
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// At anchors the time of day onto a calendar date in the given location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, date.Location())
}

// WorkWindow is the bookable start/end range for one weekday.
type WorkWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WeeklyTemplate maps weekdays to work windows. A missing entry means the
// doctor is unavailable that day.
type WeeklyTemplate map[Weekday]WorkWindow

// Window returns the work window for a weekday, if any.
func (wt WeeklyTemplate) Window(day Weekday) (WorkWindow, bool) {
	w, ok := wt[day]
	return w, ok
}

// Days lists the template's weekdays in Mon..Sun order.
func (wt WeeklyTemplate) Days() []Weekday {
	out := make([]Weekday, 0, len(wt))
	for _, d := range weekdayOrder {
		if _, ok := wt[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// DefaultTemplate is the clinic fallback for doctors who have never edited
// their schedule: weekdays 09:00-17:00, weekends off.
func DefaultTemplate() WeeklyTemplate {
	start, _ := ParseTimeOfDay("09:00")
	end, _ := ParseTimeOfDay("17:00")
	wt := make(WeeklyTemplate, 5)
	for _, d := range []Weekday{Mon, Tue, Wed, Thu, Fri} {
		wt[d] = WorkWindow{Start: start, End: end}
	}
	return wt
}

// Validate rejects windows where the end does not come after the start.
func (wt WeeklyTemplate) Validate() error {
	for day, w := range wt {
		if w.End <= w.Start {
			return fmt.Errorf("work window for %s: end %s not after start %s", day, w.End, w.Start)
		}
	}
	return nil
}
