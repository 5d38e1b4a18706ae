package service

// The availability engine turns the recurring weekly template plus existing
// bookings into bookable slots. All wall-clock math happens in the practice
// timezone; slot instants are UTC.

import (
	"time"

	"clinic_engage_backend/internal/scheduling/repository"
)

// Slot is one bookable start time on a given date.
type Slot struct {
	StartUTC     time.Time `json:"startUtc"`
	DisplayLabel string    `json:"displayLabel"`
	Available    bool      `json:"available"`
}

// Interval is a half-open booked time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Engine generates slots from the weekly template under lead-time and
// horizon constraints. Pure: no I/O, callers supply bookings and the clock.
type Engine struct {
	location            *time.Location
	granularity         time.Duration
	minLeadTime         time.Duration
	horizonBusinessDays int
}

// NewEngine creates an availability engine for the practice timezone.
func NewEngine(location *time.Location, granularityMinutes, minLeadTimeHours, horizonBusinessDays int) *Engine {
	return &Engine{
		location:            location,
		granularity:         time.Duration(granularityMinutes) * time.Minute,
		minLeadTime:         time.Duration(minLeadTimeHours) * time.Hour,
		horizonBusinessDays: horizonBusinessDays,
	}
}

// Granularity returns the slot step size.
func (e *Engine) Granularity() time.Duration {
	return e.granularity
}

// Location returns the practice timezone.
func (e *Engine) Location() *time.Location {
	return e.location
}

// GenerateSlots produces the ordered slot list for one local calendar date.
// failClosed marks every slot unavailable; it is set when the booked-slot
// fetch failed, so an outage can never cause a double booking.
func (e *Engine) GenerateSlots(year int, month time.Month, day int, template repository.WeeklyTemplate,
	nowUTC time.Time, booked []Interval, failClosed bool) []Slot {

	midnight := time.Date(year, month, day, 0, 0, 0, 0, e.location)
	windows := template[midnight.Weekday()]
	cutoff := nowUTC.Add(e.minLeadTime)

	var slots []Slot
	for _, w := range windows {
		for minutes := w.StartMinutes; minutes < w.EndMinutes; minutes += int(e.granularity / time.Minute) {
			start, ok := e.resolveLocal(year, month, day, minutes)
			if !ok {
				// Spring-forward gap: this wall-clock time does not exist today.
				continue
			}

			available := !failClosed &&
				!start.Before(cutoff) &&
				!overlapsAny(start, start.Add(e.granularity), booked)

			slots = append(slots, Slot{
				StartUTC:     start.UTC(),
				DisplayLabel: start.In(e.location).Format("3:04 PM"),
				Available:    available,
			})
		}
	}
	return slots
}

// resolveLocal converts a wall-clock minute offset on a local date to an
// instant. Nonexistent times (spring-forward gap) report ok=false; ambiguous
// times (fall-back repeat) resolve to the earlier instant.
func (e *Engine) resolveLocal(year int, month time.Month, day, minutes int) (time.Time, bool) {
	candidate := time.Date(year, month, day, minutes/60, minutes%60, 0, 0, e.location)
	if candidate.Hour()*60+candidate.Minute() != minutes || candidate.Day() != day {
		return time.Time{}, false
	}

	// During the repeated fall-back hour the same wall clock occurs twice;
	// an hour earlier on the absolute timeline shows the same local time.
	earlier := candidate.Add(-time.Hour)
	local := earlier.In(e.location)
	if local.Hour()*60+local.Minute() == minutes && local.Day() == day {
		return earlier, true
	}
	return candidate, true
}

// IsDateSelectable reports whether a calendar date can be offered for booking.
// slotsLoaded=false skips the zero-available check optimistically; callers
// must re-validate before committing a booking.
func (e *Engine) IsDateSelectable(year int, month time.Month, day int, template repository.WeeklyTemplate,
	nowUTC time.Time, booked []Interval, slotsLoaded bool) bool {

	date := time.Date(year, month, day, 0, 0, 0, 0, e.location)
	nowLocal := nowUTC.In(e.location)
	today := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, e.location)

	if !date.After(today) {
		return false
	}
	if len(template[date.Weekday()]) == 0 {
		return false
	}
	if businessDaysBetween(today, date) > e.horizonBusinessDays {
		return false
	}
	if !slotsLoaded {
		return true
	}

	for _, slot := range e.GenerateSlots(year, month, day, template, nowUTC, booked, false) {
		if slot.Available {
			return true
		}
	}
	return false
}

// businessDaysBetween counts Mon-Fri days in (from, to]. Weekends never count
// toward the booking horizon.
func businessDaysBetween(from, to time.Time) int {
	count := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func overlapsAny(start, end time.Time, booked []Interval) bool {
	for _, b := range booked {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
