package ics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// occurrence is one all-day entry of a feed after RRULE expansion.
type occurrence struct {
	UID      string
	Summary  string
	Category string
	Color    string
	Date     time.Time
}

// readFeed parses a feed the way a subscribing client would and expands its
// recurring events into the inclusive day range [from, to], sorted by date.
func readFeed(r io.Reader, from, to time.Time) ([]occurrence, error) {
	if to.Before(from) {
		return nil, errors.New("read feed: range end is before range start")
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var out []occurrence
	for _, ve := range cal.Events() {
		base, start, err := readEvent(ve)
		if err != nil {
			return nil, err
		}

		prop := ve.GetProperty(ical.ComponentPropertyRrule)
		if prop == nil {
			if !start.Before(from) && !start.After(to) {
				base.Date = start
				out = append(out, base)
			}
			continue
		}

		opt, err := rrule.StrToROption(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("event %s: rrule: %w", base.UID, err)
		}
		opt.Dtstart = start
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("event %s: rrule: %w", base.UID, err)
		}
		for _, t := range rule.Between(from, to, true) {
			occ := base
			occ.Date = t
			out = append(out, occ)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func readEvent(ve *ical.VEvent) (occurrence, time.Time, error) {
	occ := occurrence{UID: ve.Id()}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		occ.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		occ.Category = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyColor); p != nil {
		occ.Color = p.Value
	}

	start, err := ve.GetAllDayStartAt()
	if err != nil {
		return occ, time.Time{}, fmt.Errorf("event %s: dtstart: %w", occ.UID, err)
	}
	// All-day values come back in time.Local; re-anchor on the calendar day.
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return occ, start, nil
}
