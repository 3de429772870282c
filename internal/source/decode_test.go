package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickupcal/internal/model"
	"pickupcal/internal/pickup"
)

const sampleRows = `[
  {
    "id": "3f1c",
    "order_number": "CMD-0001",
    "created_at": "2025-06-01T09:30:00.123456+00:00",
    "customer_name": "Marie",
    "payment_status": "succeeded",
    "total_amount": 42.5,
    "commande_items": [
      {"produit_nom": "Pain", "quantity": 2, "pickup_date": null},
      {"produit_nom": "Brioche", "quantity": 1, "pickup_date": ""},
      {"produit_nom": "Galette", "quantity": 3, "pickup_date": "2025-06-10"}
    ]
  },
  {
    "id": 17,
    "order_number": "CMD-0002",
    "created_at": "2025-06-02T10:00:00Z",
    "customer_name": null,
    "payment_status": null,
    "total_amount": "12.00",
    "commande_items": [
      {"produit_nom": "Tarte", "quantity": 1, "pickup_date": "2025-06-12T00:00:00+02:00"}
    ]
  }
]`

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func TestDecodeOrders(t *testing.T) {
	orders, err := DecodeOrders([]byte(sampleRows), paris(t))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, "3f1c", first.ID)
	assert.Equal(t, "CMD-0001", first.OrderNumber)
	assert.Equal(t, "Marie", first.CustomerName)
	assert.Equal(t, "succeeded", first.PaymentStatus)
	assert.True(t, decimal.RequireFromString("42.50").Equal(first.TotalAmount))
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 123456000, time.UTC), first.CreatedAt.UTC())

	require.Len(t, first.Items, 3)
	assert.Nil(t, first.Items[0].PickupDate)
	assert.Nil(t, first.Items[1].PickupDate)
	require.NotNil(t, first.Items[2].PickupDate)
	assert.Equal(t, model.Date(2025, time.June, 10), *first.Items[2].PickupDate)

	second := orders[1]
	assert.Equal(t, "17", second.ID)
	assert.Empty(t, second.CustomerName)
	assert.Empty(t, second.PaymentStatus)
	assert.Equal(t, "12.00", second.TotalAmount.StringFixed(2))
	require.NotNil(t, second.Items[0].PickupDate)
	assert.Equal(t, model.Date(2025, time.June, 12), *second.Items[0].PickupDate)
}

func TestDecodeOrdersMalformedPickupDate(t *testing.T) {
	body := `[{"id":"bad","created_at":"2025-06-01T00:00:00Z","total_amount":1,
	  "commande_items":[{"produit_nom":"x","quantity":1,"pickup_date":"10/06/2025"}]}]`

	_, err := DecodeOrders([]byte(body), time.UTC)
	require.Error(t, err)

	var dateErr *MalformedPickupDateError
	require.True(t, errors.As(err, &dateErr))
	assert.Equal(t, "bad", dateErr.OrderID)
	assert.Equal(t, "10/06/2025", dateErr.Value)
}

func TestDecodeOrdersRejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"quantity":   `[{"id":"q","created_at":"2025-06-01T00:00:00Z","total_amount":1,"commande_items":[{"produit_nom":"x","quantity":0}]}]`,
		"missing id": `[{"created_at":"2025-06-01T00:00:00Z","total_amount":1,"commande_items":[]}]`,
		"not json":   `{"id":`,
		"impossible": `[{"id":"d","created_at":"2025-06-01T00:00:00Z","total_amount":1,"commande_items":[{"produit_nom":"x","quantity":1,"pickup_date":"2023-02-29"}]}]`,
	}
	for name, body := range cases {
		_, err := DecodeOrders([]byte(body), time.UTC)
		assert.Error(t, err, name)
	}
}

func TestDecodeOrdersEmpty(t *testing.T) {
	orders, err := DecodeOrders([]byte(`[]`), nil)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestParsePickupDate(t *testing.T) {
	d, err := ParsePickupDate(" 2025-12-24 ", paris(t))
	require.NoError(t, err)
	assert.Equal(t, model.Date(2025, time.December, 24), d)

	// 23:30 in New York is already the 25th in UTC and in Paris.
	d, err = ParsePickupDate("2025-12-24T23:30:00-05:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, model.Date(2025, time.December, 25), d)

	d, err = ParsePickupDate("2025-12-24T23:30:00-05:00", paris(t))
	require.NoError(t, err)
	assert.Equal(t, model.Date(2025, time.December, 25), d)

	d, err = ParsePickupDate("2025-12-24T23:30:00-05:00", time.FixedZone("EST", -5*3600))
	require.NoError(t, err)
	assert.Equal(t, model.Date(2025, time.December, 24), d)

	_, err = ParsePickupDate("tomorrow", time.UTC)
	assert.Error(t, err)
}

func TestParsePickupDateKeepsDateOnlyValues(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, paris(t), time.FixedZone("HST", -10*3600)} {
		d, err := ParsePickupDate("2025-06-10", loc)
		require.NoError(t, err)
		assert.Equal(t, model.Date(2025, time.June, 10), d, loc.String())
	}
}

func TestDecodeOrdersSameInstantDifferentOffsets(t *testing.T) {
	body := `[{"id":"X","created_at":"2025-06-01T08:00:00Z","total_amount":3,
	  "commande_items":[
	    {"produit_nom":"a","quantity":1,"pickup_date":"2025-06-10T23:30:00Z"},
	    {"produit_nom":"b","quantity":2,"pickup_date":"2025-06-11T01:30:00+02:00"}
	  ]}]`

	orders, err := DecodeOrders([]byte(body), paris(t))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, *orders[0].Items[0].PickupDate, *orders[0].Items[1].PickupDate)

	events := pickup.DeriveOrderEvents(orders, paris(t))
	require.Len(t, events, 1)
	assert.Equal(t, "X:2025-06-11", events[0].ID)
	assert.Equal(t, 3, events[0].Order.ItemCount)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRows), 0o600))

	orders, err := FileSource{Path: path, Location: time.UTC}.Orders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Orders(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
