package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateKeyLayout is the canonical calendar-day key format.
const DateKeyLayout = "2006-01-02"

// Order is a customer order as delivered by the remote data store. The
// calendar engine only reads it.
type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CreatedAt     time.Time       `json:"created_at"`
	CustomerName  string          `json:"customer_name"`
	PaymentStatus string          `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []OrderItem     `json:"items"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`

	// PickupDate is the calendar day the item becomes collectable.
	// nil means "available immediately, ready at order time".
	PickupDate *time.Time `json:"pickup_date,omitempty"`
}

// HolidayCategory tells how a holiday date is obtained.
type HolidayCategory string

const (
	HolidayFixed          HolidayCategory = "fixed"
	HolidayEasterRelative HolidayCategory = "easterRelative"
	HolidayRegional       HolidayCategory = "regional"
)

// Holiday is a public holiday on a single calendar day.
type Holiday struct {
	Date     time.Time       `json:"date"`
	Name     string          `json:"name"`
	Category HolidayCategory `json:"category"`
}

// EventKind distinguishes pickup events from holiday overlays.
type EventKind string

const (
	KindOrder   EventKind = "order"
	KindHoliday EventKind = "holiday"
)

// CalendarEvent is a derived all-day calendar entry. Events are built fresh
// on every derivation and never persisted.
type CalendarEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Kind  EventKind `json:"kind"`

	// Exactly one of Order / Holiday is set, matching Kind.
	Order   *OrderResource   `json:"order,omitempty"`
	Holiday *HolidayResource `json:"holiday,omitempty"`
}

// OrderResource carries the order-side payload of a pickup event: the
// subset of the order's items collectable on the event's date.
type OrderResource struct {
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	Status       string          `json:"status"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	IsPreorder   bool            `json:"is_preorder"`
	ItemCount    int             `json:"item_count"`
	Items        []OrderItem     `json:"items"`
}

// HolidayResource is the holiday-side payload of a holiday event.
type HolidayResource struct {
	Name     string          `json:"name"`
	Category HolidayCategory `json:"category"`
}

// DateOf truncates t to its calendar day, read in t's own location, and
// re-anchors it at midnight UTC so days compare with Equal.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateKey renders the calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return DateOf(t).Format(DateKeyLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// ParseDateKey parses a YYYY-MM-DD key into a calendar day.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, s, time.UTC)
}
