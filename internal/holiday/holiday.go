// Package holiday computes French public holidays, optionally with the
// Alsace-Moselle additions, for arbitrary Gregorian years.
package holiday

import (
	"fmt"
	"sort"
	"time"

	"pickupcal/internal/model"
)

// Bounds accepted by ForRange.
const (
	MinYear     = 1
	MaxYearSpan = 1000
)

// InvalidRangeError is returned by ForRange when the end year precedes the
// start year, a year is below MinYear, or the range spans more than
// MaxYearSpan years.
type InvalidRangeError struct {
	Start int
	End   int
}

func (e *InvalidRangeError) Error() string {
	switch {
	case e.End < e.Start:
		return fmt.Sprintf("holiday: invalid year range %d..%d: end before start", e.Start, e.End)
	case e.Start < MinYear:
		return fmt.Sprintf("holiday: invalid year range %d..%d: years start at %d", e.Start, e.End, MinYear)
	default:
		return fmt.Sprintf("holiday: invalid year range %d..%d: more than %d years", e.Start, e.End, MaxYearSpan)
	}
}

type fixedDay struct {
	month time.Month
	day   int
	name  string
}

type easterOffset struct {
	days int
	name string
}

var nationalFixed = []fixedDay{
	{time.January, 1, "Jour de l'An"},
	{time.May, 1, "Fête du Travail"},
	{time.May, 8, "Fête de la Victoire"},
	{time.July, 14, "Fête Nationale"},
	{time.August, 15, "Assomption"},
	{time.November, 1, "Toussaint"},
	{time.November, 11, "Armistice"},
	{time.December, 25, "Noël"},
}

var nationalEaster = []easterOffset{
	{1, "Lundi de Pâques"},
	{39, "Ascension"},
	{50, "Lundi de Pentecôte"},
}

// Alsace-Moselle.
var (
	regionalEaster = []easterOffset{{-2, "Vendredi Saint"}}
	regionalFixed  = []fixedDay{{time.December, 26, "Saint-Étienne"}}
)

// EasterDate returns Easter Sunday of the given Gregorian year using the
// Meeus/Jones/Butcher algorithm.
func EasterDate(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return model.Date(year, time.Month(month), day)
}

// ForYear returns the holidays of one year sorted by date. With
// includeRegional the Alsace-Moselle days are added with category regional.
func ForYear(year int, includeRegional bool) []model.Holiday {
	easter := EasterDate(year)

	out := make([]model.Holiday, 0, len(nationalFixed)+len(nationalEaster)+2)
	for _, f := range nationalFixed {
		out = append(out, model.Holiday{
			Date:     model.Date(year, f.month, f.day),
			Name:     f.name,
			Category: model.HolidayFixed,
		})
	}
	for _, o := range nationalEaster {
		out = append(out, model.Holiday{
			Date:     easter.AddDate(0, 0, o.days),
			Name:     o.name,
			Category: model.HolidayEasterRelative,
		})
	}

	if includeRegional {
		for _, o := range regionalEaster {
			out = append(out, model.Holiday{
				Date:     easter.AddDate(0, 0, o.days),
				Name:     o.name,
				Category: model.HolidayRegional,
			})
		}
		for _, f := range regionalFixed {
			out = append(out, model.Holiday{
				Date:     model.Date(year, f.month, f.day),
				Name:     f.name,
				Category: model.HolidayRegional,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return mergeSameDay(out)
}

// mergeSameDay folds holidays sharing a day into one entry so each day is
// listed once (Ascension lands on May 1 in 2008 and on May 8 in 1997).
// The first entry keeps its category; names are joined. Input is sorted.
func mergeSameDay(hs []model.Holiday) []model.Holiday {
	out := hs[:0]
	for _, h := range hs {
		if n := len(out); n > 0 && out[n-1].Date.Equal(h.Date) {
			out[n-1].Name += " / " + h.Name
			continue
		}
		out = append(out, h)
	}
	return out
}

// ForRange concatenates ForYear for every year in [startYear, endYear].
// The range must lie within MinYear and MaxYearSpan.
func ForRange(startYear, endYear int, includeRegional bool) ([]model.Holiday, error) {
	// startYear >= MinYear keeps endYear-startYear from overflowing.
	if endYear < startYear || startYear < MinYear || endYear-startYear >= MaxYearSpan {
		return nil, &InvalidRangeError{Start: startYear, End: endYear}
	}

	out := make([]model.Holiday, 0, (endYear-startYear+1)*13)
	for y := startYear; y <= endYear; y++ {
		out = append(out, ForYear(y, includeRegional)...)
	}
	return out, nil
}

// Lookup returns the holiday falling on date's calendar day, if any. Only
// date's own year is computed.
func Lookup(date time.Time, includeRegional bool) (model.Holiday, bool) {
	day := model.DateOf(date)
	for _, h := range ForYear(day.Year(), includeRegional) {
		if h.Date.Equal(day) {
			return h, true
		}
	}
	return model.Holiday{}, false
}
