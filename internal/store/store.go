// Package store reads orders straight from the shop's PostgreSQL database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"pickupcal/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to dsn and, when migrate is set, applies the embedded
// schema migrations.
func Open(dsn string, migrate bool) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db error: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db error: %w", err)
	}

	if migrate {
		goose.SetBaseFS(migrations)
		if err := goose.SetDialect("postgres"); err != nil {
			db.Close()
			return nil, fmt.Errorf("goose dialect error: %w", err)
		}
		if err := goose.Up(db, "migrations"); err != nil {
			db.Close()
			return nil, fmt.Errorf("goose up error: %w", err)
		}
	}
	return db, nil
}

// OrderStore implements source.Source on top of a *sql.DB.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

const ordersQuery = `
SELECT c.id, c.order_number, c.created_at,
       COALESCE(c.customer_name, ''), COALESCE(c.payment_status, ''), c.total_amount,
       i.produit_nom, i.quantity, i.pickup_date
FROM commandes c
LEFT JOIN commande_items i ON i.commande_id = c.id
ORDER BY c.created_at, c.id, i.id`

// joinedRow is one row of ordersQuery. Item columns are NULL for orders
// without items.
type joinedRow struct {
	OrderID       string
	OrderNumber   string
	CreatedAt     time.Time
	CustomerName  string
	PaymentStatus string
	TotalAmount   decimal.Decimal
	ProductName   sql.NullString
	Quantity      sql.NullInt64
	PickupDate    sql.NullTime
}

// Orders loads every order with its items in one round trip.
func (s *OrderStore) Orders(ctx context.Context) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, ordersQuery)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var joined []joinedRow
	for rows.Next() {
		var r joinedRow
		if err := rows.Scan(
			&r.OrderID, &r.OrderNumber, &r.CreatedAt,
			&r.CustomerName, &r.PaymentStatus, &r.TotalAmount,
			&r.ProductName, &r.Quantity, &r.PickupDate,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		joined = append(joined, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return foldRows(joined), nil
}

// foldRows groups consecutive rows of the same order, keeping row order for
// both orders and items.
func foldRows(rows []joinedRow) []model.Order {
	orders := make([]model.Order, 0)
	index := make(map[string]int)

	for _, r := range rows {
		i, ok := index[r.OrderID]
		if !ok {
			i = len(orders)
			index[r.OrderID] = i
			orders = append(orders, model.Order{
				ID:            r.OrderID,
				OrderNumber:   r.OrderNumber,
				CreatedAt:     r.CreatedAt,
				CustomerName:  r.CustomerName,
				PaymentStatus: r.PaymentStatus,
				TotalAmount:   r.TotalAmount,
				Items:         []model.OrderItem{},
			})
		}
		if !r.ProductName.Valid {
			continue
		}

		item := model.OrderItem{
			ProductName: r.ProductName.String,
			Quantity:    int(r.Quantity.Int64),
		}
		if r.PickupDate.Valid {
			d := model.DateOf(r.PickupDate.Time)
			item.PickupDate = &d
		}
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders
}
