package timetable

import "time"

// LeadTime computes the trigger clock time lead minutes before an event.
// When the subtraction crosses midnight the returned dayShift is -1 and the
// caller must move the trigger weekday one day back. Pure and deterministic.
func LeadTime(hour, minute, lead int) (h, m, dayShift int) {
	total := hour*60 + minute - lead
	for total < 0 {
		total += 24 * 60
		dayShift--
	}
	return total / 60, total % 60, dayShift
}

// ShiftWeekday moves a weekday by shift days, wrapping within the week
// (Monday shifted -1 is Sunday).
func ShiftWeekday(wd time.Weekday, shift int) time.Weekday {
	d := (int(wd) + shift) % 7
	if d < 0 {
		d += 7
	}
	return time.Weekday(d)
}
