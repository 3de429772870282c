package holiday

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"pickupcal/internal/model"
)

func TestEasterDateKnownValues(t *testing.T) {
	cases := []struct {
		year int
		want time.Time
	}{
		{2008, model.Date(2008, time.March, 23)},
		{2024, model.Date(2024, time.March, 31)},
		{2025, model.Date(2025, time.April, 20)},
		{2030, model.Date(2030, time.April, 21)},
		{2038, model.Date(2038, time.April, 25)},
		{2285, model.Date(2285, time.March, 22)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EasterDate(tc.year), "year %d", tc.year)
	}
}

func TestEasterDateMatchesRRuleByEaster(t *testing.T) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.YEARLY,
		Byeaster: []int{0},
		Dtstart:  time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:    time.Date(2100, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	dates := r.All()
	require.Len(t, dates, 201)
	for _, d := range dates {
		assert.Equal(t, model.DateOf(d), EasterDate(d.Year()), "year %d", d.Year())
	}
}

func TestEasterDateIsSunday(t *testing.T) {
	for y := 1583; y <= 3000; y++ {
		require.Equal(t, time.Sunday, EasterDate(y).Weekday(), "year %d", y)
	}
}

func TestForYearIsDeterministic(t *testing.T) {
	assert.Equal(t, ForYear(2027, true), ForYear(2027, true))
	assert.Equal(t, EasterDate(2027), EasterDate(2027))
}

func TestForYearCounts(t *testing.T) {
	national := ForYear(2030, false)
	require.Len(t, national, 11)

	byCategory := map[model.HolidayCategory]int{}
	for _, h := range national {
		byCategory[h.Category]++
	}
	assert.Equal(t, 8, byCategory[model.HolidayFixed])
	assert.Equal(t, 3, byCategory[model.HolidayEasterRelative])

	withRegional := ForYear(2030, true)
	require.Len(t, withRegional, 13)
}

func TestForYearEasterRelativeDates(t *testing.T) {
	hs := ForYear(2025, true)

	want := map[string]string{
		"2025-04-18": "Vendredi Saint",
		"2025-04-21": "Lundi de Pâques",
		"2025-05-29": "Ascension",
		"2025-06-09": "Lundi de Pentecôte",
		"2025-12-26": "Saint-Étienne",
	}
	got := map[string]string{}
	for _, h := range hs {
		got[model.DateKey(h.Date)] = h.Name
	}
	for key, name := range want {
		assert.Equal(t, name, got[key], key)
	}
}

func TestForYearSortedAndUnique(t *testing.T) {
	for y := 1990; y <= 2040; y++ {
		hs := ForYear(y, true)
		seen := map[string]bool{}
		for i, h := range hs {
			key := model.DateKey(h.Date)
			require.False(t, seen[key], "duplicate %s", key)
			seen[key] = true
			if i > 0 {
				require.True(t, hs[i-1].Date.Before(h.Date))
			}
		}
	}
}

func TestForYearMergesCoincidingHolidays(t *testing.T) {
	h, ok := Lookup(model.Date(2008, time.May, 1), false)
	require.True(t, ok)
	assert.Equal(t, "Fête du Travail / Ascension", h.Name)
	assert.Equal(t, model.HolidayFixed, h.Category)
	assert.Len(t, ForYear(2008, false), 10)

	h, ok = Lookup(model.Date(1997, time.May, 8), false)
	require.True(t, ok)
	assert.Equal(t, "Fête de la Victoire / Ascension", h.Name)
}

func TestForRangeIsAdditive(t *testing.T) {
	got, err := ForRange(2020, 2022, false)
	require.NoError(t, err)

	var want []model.Holiday
	for y := 2020; y <= 2022; y++ {
		want = append(want, ForYear(y, false)...)
	}
	assert.ElementsMatch(t, want, got)
}

func TestForRangeSingleYear(t *testing.T) {
	got, err := ForRange(2030, 2030, true)
	require.NoError(t, err)
	assert.Len(t, got, 13)
}

func TestForRangeInvalid(t *testing.T) {
	_, err := ForRange(2025, 2024, false)
	require.Error(t, err)

	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 2025, rangeErr.Start)
	assert.Equal(t, 2024, rangeErr.End)
}

func TestForRangeBounds(t *testing.T) {
	cases := []struct{ start, end int }{
		{0, 10},
		{-5, 2025},
		{1, 2_000_000_000},
		{2000, 2000 + MaxYearSpan},
		{math.MinInt, math.MaxInt},
	}
	for _, c := range cases {
		_, err := ForRange(c.start, c.end, false)
		var rangeErr *InvalidRangeError
		assert.True(t, errors.As(err, &rangeErr), "%d..%d", c.start, c.end)
	}

	got, err := ForRange(MinYear, MinYear, false)
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	got, err = ForRange(2000, 2000+MaxYearSpan-1, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), MaxYearSpan*10)
}

func TestForRangeLarge(t *testing.T) {
	got, err := ForRange(1900, 2100, false)
	require.NoError(t, err)
	assert.Greater(t, len(got), 200*10)
}

func TestLookupIgnoresTimeOfDay(t *testing.T) {
	evening := time.Date(2025, time.July, 14, 22, 15, 0, 0, time.UTC)
	h, ok := Lookup(evening, false)
	require.True(t, ok)
	assert.Equal(t, "Fête Nationale", h.Name)

	_, ok = Lookup(time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC), false)
	assert.False(t, ok)
}

func TestLookupRegional(t *testing.T) {
	goodFriday := model.Date(2025, time.April, 18)

	_, ok := Lookup(goodFriday, false)
	assert.False(t, ok)

	h, ok := Lookup(goodFriday, true)
	require.True(t, ok)
	assert.Equal(t, model.HolidayRegional, h.Category)
}
