// Package availability computes bookable slot candidates from a doctor's
// weekly work template and the clinic policy. The computation is pure: no
// storage access, no locking, safe for any number of concurrent callers.
//
// The result is advisory. The booking ledger recomputes it inside the
// per-doctor-per-date critical section before committing a reservation, so a
// stale candidate list can never produce a double booking.
package availability

import (
	"time"

	"github.com/digihealth/clinic-scheduler/internal/policy"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

// Request carries everything the slot computation needs.
type Request struct {
	Template schedule.WeeklyTemplate
	Policy   policy.Policy
	Date     time.Time // target calendar date
	Now      time.Time // evaluation time on the clinic-local clock
	Booked   []schedule.TimeOfDay
}

// Slots returns the ordered candidate slot-start times for the request's
// date. An empty result means the doctor is not bookable that day.
//
// Rules:
//   - no template entry for the weekday, a past date, or a date beyond
//     maxAdvanceDays yields nothing;
//   - on the target day itself, booking must respect allowSameDayBooking and
//     minAdvanceHours, with the earliest slot rounded up to the next
//     slot-size multiple relative to the window start;
//   - a slot whose duration would run past the window end is dropped;
//   - slots occupied by an active appointment are removed.
func Slots(req Request) []schedule.TimeOfDay {
	window, ok := req.Template.Window(schedule.WeekdayOf(req.Date))
	if !ok {
		return nil
	}

	// Dates arrive anchored to the clinic calendar; pull now into the same
	// location so the subtraction compares calendar days, not offsets.
	now := req.Now.In(req.Date.Location())

	today := midnight(now)
	target := midnight(req.Date)

	daysAhead := int(target.Sub(today).Hours() / 24)
	if daysAhead < 0 || daysAhead > req.Policy.MaxAdvanceDays {
		return nil
	}

	earliest := window.Start
	if daysAhead == 0 {
		if !req.Policy.AllowSameDayBooking {
			return nil
		}

		cutoff := now.Add(time.Duration(req.Policy.MinAdvanceHours) * time.Hour)
		if midnight(cutoff).After(target) {
			return nil
		}
		cutoffTod := schedule.TimeOfDay(cutoff.Hour()*60 + cutoff.Minute())
		if cutoffTod > earliest {
			earliest = roundUpToSlot(cutoffTod, window.Start, req.Policy.SlotMinutes)
		}
	}

	taken := make(map[schedule.TimeOfDay]struct{}, len(req.Booked))
	for _, t := range req.Booked {
		taken[t] = struct{}{}
	}

	slot := schedule.TimeOfDay(req.Policy.SlotMinutes)
	var out []schedule.TimeOfDay
	for t := earliest; t+slot <= window.End; t += slot {
		if _, occupied := taken[t]; occupied {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Contains reports whether the given time is a valid candidate for the
// request. The ledger uses it for the re-validation inside the lock.
func Contains(req Request, t schedule.TimeOfDay) bool {
	for _, s := range Slots(req) {
		if s == t {
			return true
		}
	}
	return false
}

// roundUpToSlot advances t to the next multiple of slotMinutes counted from
// the window start. Alignment is window-relative, not wall-clock-relative, so
// a window starting at 09:15 with 30-minute slots yields 09:45, 10:15, ...
func roundUpToSlot(t, windowStart schedule.TimeOfDay, slotMinutes int) schedule.TimeOfDay {
	delta := int(t - windowStart)
	rem := delta % slotMinutes
	if rem == 0 {
		return t
	}
	return t + schedule.TimeOfDay(slotMinutes-rem)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
