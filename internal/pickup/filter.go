package pickup

import (
	"time"

	"pickupcal/internal/model"
)

// FilterByRange keeps events whose day lies in [start, end], both inclusive
// and compared by calendar day. An end before start yields nothing.
func FilterByRange(events []model.CalendarEvent, start, end time.Time) []model.CalendarEvent {
	from := model.DateOf(start)
	to := model.DateOf(end)

	out := make([]model.CalendarEvent, 0)
	if to.Before(from) {
		return out
	}
	for _, e := range events {
		d := model.DateOf(e.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterByDay keeps events on exactly day. When kinds are given, only
// events of those kinds are kept.
func FilterByDay(events []model.CalendarEvent, day time.Time, kinds ...model.EventKind) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for _, e := range events {
		if !model.SameDay(e.Date, day) {
			continue
		}
		if len(kinds) > 0 && !hasKind(kinds, e.Kind) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasKind(kinds []model.EventKind, k model.EventKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
