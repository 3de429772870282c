// Package source loads orders from the places the shop keeps them: a JSON
// export on disk or the PostgREST endpoint of the hosted database.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pickupcal/internal/model"
)

// Source yields the current order list.
type Source interface {
	Orders(ctx context.Context) ([]model.Order, error)
}

// MalformedPickupDateError reports a pickup_date that is neither a calendar
// date nor an RFC 3339 timestamp.
type MalformedPickupDateError struct {
	OrderID string
	Value   string
}

func (e *MalformedPickupDateError) Error() string {
	return fmt.Sprintf("order %s: malformed pickup_date %q", e.OrderID, e.Value)
}

// orderRow mirrors a "commandes" row with its embedded "commande_items".
type orderRow struct {
	ID            json.RawMessage `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CreatedAt     time.Time       `json:"created_at"`
	CustomerName  *string         `json:"customer_name"`
	PaymentStatus *string         `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []itemRow       `json:"commande_items"`
}

type itemRow struct {
	ProductName string  `json:"produit_nom"`
	Quantity    int     `json:"quantity"`
	PickupDate  *string `json:"pickup_date"`
}

// DecodeOrders decodes a JSON array of order rows. Timestamp pickup dates
// are read as calendar days in loc; nil means time.Local.
func DecodeOrders(body []byte, loc *time.Location) ([]model.Order, error) {
	if loc == nil {
		loc = time.Local
	}

	var rows []orderRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	orders := make([]model.Order, 0, len(rows))
	for i, r := range rows {
		o, err := r.toOrder(loc)
		if err != nil {
			return nil, fmt.Errorf("decode orders: row %d: %w", i, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r orderRow) toOrder(loc *time.Location) (model.Order, error) {
	id := decodeID(r.ID)
	if id == "" {
		return model.Order{}, errors.New("missing order id")
	}

	o := model.Order{
		ID:            id,
		OrderNumber:   r.OrderNumber,
		CreatedAt:     r.CreatedAt,
		CustomerName:  deref(r.CustomerName),
		PaymentStatus: deref(r.PaymentStatus),
		TotalAmount:   r.TotalAmount,
		Items:         make([]model.OrderItem, 0, len(r.Items)),
	}

	for _, it := range r.Items {
		if it.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("order %s: item %q has quantity %d", id, it.ProductName, it.Quantity)
		}
		item := model.OrderItem{ProductName: it.ProductName, Quantity: it.Quantity}

		if it.PickupDate != nil && strings.TrimSpace(*it.PickupDate) != "" {
			d, err := ParsePickupDate(*it.PickupDate, loc)
			if err != nil {
				return model.Order{}, &MalformedPickupDateError{OrderID: id, Value: *it.PickupDate}
			}
			item.PickupDate = &d
		}
		o.Items = append(o.Items, item)
	}
	return o, nil
}

// ParsePickupDate accepts "2006-01-02" or an RFC 3339 timestamp and returns
// the calendar day it names. A date is taken as is; a timestamp is converted
// to loc first so one instant always lands on one day whatever its offset.
func ParsePickupDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := model.ParseDateKey(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return model.DateOf(t.In(loc)), nil
}

// decodeID accepts numeric and string identifiers.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
