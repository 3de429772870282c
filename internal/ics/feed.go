// Package ics renders the derived calendar as an iCalendar subscription
// feed and reads such feeds back.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"pickupcal/internal/model"
	"pickupcal/internal/pickup"
)

const productService = "pickupcal"

// FeedOptions controls the calendar-level properties of a feed.
type FeedOptions struct {
	// Name is published as X-WR-CALNAME.
	Name string
	// TTL is the suggested refresh interval (X-PUBLISHED-TTL). Zero omits it.
	TTL time.Duration
	// RecurringHolidays collapses a holiday repeating on the same month/day
	// in consecutive years into one VEVENT with a yearly RRULE.
	RecurringHolidays bool
	// Stamp is used as DTSTAMP; zero means time.Now().
	Stamp time.Time
}

// Encode writes events as a VCALENDAR with one all-day VEVENT per event.
func Encode(w io.Writer, events []model.CalendarEvent, opts FeedOptions) error {
	cal, err := Build(events, opts)
	if err != nil {
		return err
	}
	return cal.SerializeTo(w)
}

// Build assembles the calendar without serializing it.
func Build(events []model.CalendarEvent, opts FeedOptions) (*ical.Calendar, error) {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendarFor(productService)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.TTL > 0 {
		ttl := isoDuration(opts.TTL)
		cal.SetXPublishedTTL(ttl)
		cal.SetRefreshInterval(ttl, ical.WithValue("DURATION"))
	}

	var counts map[int]int
	var covered map[int]bool
	if opts.RecurringHolidays {
		counts, covered = yearlySeries(events)
	}

	for i, e := range events {
		if covered[i] {
			continue
		}

		ev := cal.AddEvent(eventUID(e.ID))
		ev.SetDtStampTime(stamp)
		ev.SetSummary(e.Title)
		ev.SetAllDayStartAt(model.DateOf(e.Date))
		ev.SetAllDayEndAt(model.DateOf(e.Date).AddDate(0, 0, 1))
		ev.AddCategory(string(e.Kind))
		ev.SetColor(pickup.ClassifyEventStyle(e).Hex())
		ev.SetTimeTransparency(ical.TransparencyTransparent)
		if desc := describe(e); desc != "" {
			ev.SetDescription(desc)
		}

		if n := counts[i]; n > 1 {
			r, err := rrule.NewRRule(rrule.ROption{
				Freq:       rrule.YEARLY,
				Bymonth:    []int{int(e.Date.Month())},
				Bymonthday: []int{e.Date.Day()},
				Count:      n,
				Dtstart:    model.DateOf(e.Date),
			})
			if err != nil {
				return nil, fmt.Errorf("holiday rrule %s: %w", e.ID, err)
			}
			ev.AddRrule(r.OrigOptions.RRuleString())
		}
	}
	return cal, nil
}

// eventUID derives a stable UID from an event id so calendar apps update
// events in place across refreshes.
func eventUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("pickupcal:"+id)).String()
}

func describe(e model.CalendarEvent) string {
	switch {
	case e.Order != nil:
		o := e.Order
		var b strings.Builder
		if o.OrderNumber != "" {
			fmt.Fprintf(&b, "Commande %s\n", o.OrderNumber)
		}
		status := o.Status
		if status == "" {
			status = "N/A"
		}
		fmt.Fprintf(&b, "Statut: %s\n", status)
		fmt.Fprintf(&b, "Total: %s€\n", o.TotalAmount.StringFixed(2))
		for _, it := range o.Items {
			fmt.Fprintf(&b, "- %d × %s\n", it.Quantity, it.ProductName)
		}
		return strings.TrimRight(b.String(), "\n")
	case e.Holiday != nil:
		return "Jour férié"
	}
	return ""
}

// yearlySeries finds runs of one holiday on the same month/day in
// consecutive years. counts is keyed by the index of a run's first event;
// covered marks the later events the run's RRULE stands for.
// Easter-relative holidays never form a run.
func yearlySeries(events []model.CalendarEvent) (counts map[int]int, covered map[int]bool) {
	type key struct {
		month time.Month
		day   int
		name  string
	}
	type run struct {
		start    int
		lastYear int
	}

	counts = make(map[int]int)
	covered = make(map[int]bool)
	open := make(map[key]run)

	for i, e := range events {
		if e.Kind != model.KindHoliday || e.Holiday == nil || e.Holiday.Category == model.HolidayEasterRelative {
			continue
		}
		k := key{e.Date.Month(), e.Date.Day(), e.Holiday.Name}
		year := e.Date.Year()

		if r, ok := open[k]; ok && r.lastYear+1 == year {
			counts[r.start]++
			covered[i] = true
			open[k] = run{start: r.start, lastYear: year}
			continue
		}
		counts[i] = 1
		open[k] = run{start: i, lastYear: year}
	}
	return counts, covered
}

// isoDuration renders d as an RFC 5545 duration, e.g. PT1H or P1D.
func isoDuration(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("P%dD", d/(24*time.Hour))
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("PT%dH", d/time.Hour)
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("PT%dM", d/time.Minute)
	}
	return fmt.Sprintf("PT%dS", d/time.Second)
}
