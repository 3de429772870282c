// Package pickup turns orders into a calendar of pickup events and overlays
// public holidays on it.
//
// A mixed order shows up once per distinct pickup date: one event for the
// items available at order time and one per preorder date.
package pickup

import (
	"fmt"
	"sort"
	"time"

	"pickupcal/internal/holiday"
	"pickupcal/internal/model"
)

// ImmediateKey is the group key of items without a pickup date.
const ImmediateKey = "immediate"

const defaultCustomer = "Client"

// Options is the explicit configuration of a derivation pass.
type Options struct {
	// IncludeHolidays overlays holidays for [StartYear, EndYear].
	IncludeHolidays bool
	IncludeRegional bool
	StartYear       int
	EndYear         int

	// Location is the local calendar used to date immediate items from the
	// order's creation instant. nil means time.Local.
	Location *time.Location
}

type itemGroup struct {
	key   string
	date  *time.Time
	items []model.OrderItem
}

// groupKey returns the canonical key of an item's pickup date, or
// ImmediateKey. A non-nil zero date counts as immediate.
func groupKey(it model.OrderItem) (string, *time.Time) {
	if it.PickupDate == nil || it.PickupDate.IsZero() {
		return ImmediateKey, nil
	}
	day := model.DateOf(*it.PickupDate)
	return day.Format(model.DateKeyLayout), &day
}

// groupItems partitions items by pickup day, keeping first-appearance order.
func groupItems(items []model.OrderItem) []itemGroup {
	var groups []itemGroup
	index := make(map[string]int)

	for _, it := range items {
		key, day := groupKey(it)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, itemGroup{key: key, date: day})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

// DeriveOrderEvents emits one order event per distinct pickup date of each
// order. Orders without items produce nothing.
func DeriveOrderEvents(orders []model.Order, loc *time.Location) []model.CalendarEvent {
	if loc == nil {
		loc = time.Local
	}

	events := make([]model.CalendarEvent, 0, len(orders))
	for _, o := range orders {
		for _, g := range groupItems(o.Items) {
			events = append(events, orderEvent(o, g, loc))
		}
	}
	return events
}

func orderEvent(o model.Order, g itemGroup, loc *time.Location) model.CalendarEvent {
	preorder := g.date != nil

	var date time.Time
	if preorder {
		date = *g.date
	} else {
		date = model.DateOf(o.CreatedAt.In(loc))
	}

	count := 0
	for _, it := range g.items {
		count += it.Quantity
	}

	return model.CalendarEvent{
		ID:    o.ID + ":" + g.key,
		Title: orderTitle(o.CustomerName, count, preorder),
		Date:  date,
		Kind:  model.KindOrder,
		Order: &model.OrderResource{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			Status:       o.PaymentStatus,
			CustomerName: o.CustomerName,
			TotalAmount:  o.TotalAmount,
			IsPreorder:   preorder,
			ItemCount:    count,
			Items:        g.items,
		},
	}
}

func orderTitle(customer string, count int, preorder bool) string {
	if customer == "" {
		customer = defaultCustomer
	}
	if preorder {
		return fmt.Sprintf("📅 %s – %d précommandes", customer, count)
	}
	return fmt.Sprintf("✓ %s – %d articles dispo", customer, count)
}

// HolidayEvent converts a holiday into a calendar event keyed by its date.
func HolidayEvent(h model.Holiday) model.CalendarEvent {
	day := model.DateOf(h.Date)
	return model.CalendarEvent{
		ID:    day.Format(model.DateKeyLayout),
		Title: h.Name,
		Date:  day,
		Kind:  model.KindHoliday,
		Holiday: &model.HolidayResource{
			Name:     h.Name,
			Category: h.Category,
		},
	}
}

// MergeWithHolidays appends one holiday event per holiday to orderEvents.
// Order and holiday events may share a day.
func MergeWithHolidays(orderEvents []model.CalendarEvent, holidays []model.Holiday) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(orderEvents)+len(holidays))
	out = append(out, orderEvents...)
	for _, h := range holidays {
		out = append(out, HolidayEvent(h))
	}
	return out
}

// Derive runs a full pass: order events, the optional holiday overlay, and
// a stable sort by date. The only failure is an invalid holiday year range.
func Derive(orders []model.Order, opts Options) ([]model.CalendarEvent, error) {
	events := DeriveOrderEvents(orders, opts.Location)

	if opts.IncludeHolidays {
		hs, err := holiday.ForRange(opts.StartYear, opts.EndYear, opts.IncludeRegional)
		if err != nil {
			return nil, err
		}
		events = MergeWithHolidays(events, hs)
	}

	SortByDate(events)
	return events, nil
}

// SortByDate orders events by day; events of the same day keep their
// relative order.
func SortByDate(events []model.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
}
