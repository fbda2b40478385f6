// internal/matching/availability.go
package matching

import (
	"math"
	"time"
)

// unboundedBooking is the assumed length of a booking with no recorded end.
const unboundedBooking = 4 * time.Hour

// SelectAvailability returns the authoritative windows for day as of asOf: all
// windows carrying the latest EffectiveDate on or before asOf's calendar date.
// A split shift yields more than one.
func SelectAvailability(windows []AvailabilityWindow, day time.Weekday, asOf time.Time) []AvailabilityWindow {
	var (
		selected []AvailabilityWindow
		latest   int
	)
	for _, w := range windows {
		if w.DayOfWeek != day || !w.EffectiveOn(asOf) {
			continue
		}
		switch d := calendarDate(w.EffectiveDate); {
		case selected == nil || d > latest:
			selected = []AvailabilityWindow{w}
			latest = d
		case d == latest:
			selected = append(selected, w)
		}
	}
	return selected
}

// AvailableAt reports whether any authoritative window for start's weekday
// covers a visit of durationHours beginning at start.
func AvailableAt(windows []AvailabilityWindow, start time.Time, durationHours float64) bool {
	for _, w := range SelectAvailability(windows, start.Weekday(), start) {
		if w.Covers(start.Hour(), durationHours) {
			return true
		}
	}
	return false
}

// EffectiveOn reports whether w has taken effect by the calendar date of asOf,
// read in asOf's own location. EffectiveDate is a date, so its clock and zone are ignored.
func (w AvailabilityWindow) EffectiveOn(asOf time.Time) bool {
	return calendarDate(w.EffectiveDate) <= calendarDate(asOf)
}

func calendarDate(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Covers reports whether w spans a visit starting at hour for durationHours,
// rounding the duration up to whole hours.
func (w AvailabilityWindow) Covers(hour int, durationHours float64) bool {
	return w.StartHour <= hour && w.EndHour >= hour+int(math.Ceil(durationHours))
}

// HasConflict reports whether any booking strictly overlaps [start, start+duration).
// The booking for visitID, the visit being matched, never conflicts with itself.
func HasConflict(bookings []Booking, visitID string, start time.Time, durationHours float64) bool {
	end := start.Add(hoursToDuration(durationHours))
	for _, b := range bookings {
		if visitID != "" && b.VisitID == visitID {
			continue
		}
		if start.Before(b.end()) && end.After(b.Start) {
			return true
		}
	}
	return false
}

func (b Booking) end() time.Time {
	if b.End != nil {
		return *b.End
	}
	return b.Start.Add(unboundedBooking)
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
