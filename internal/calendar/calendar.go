// Package calendar keeps the derived event list of the running service and
// refreshes it from an order source.
package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	appLog "pickupcal/internal/log"
	"pickupcal/internal/model"
	"pickupcal/internal/pickup"
	"pickupcal/internal/source"
)

// Snapshot is an immutable view of the derived calendar.
type Snapshot struct {
	Events      []model.CalendarEvent
	Version     string
	RefreshedAt time.Time
}

// Calendar serves the latest snapshot while refreshes run in the background.
type Calendar struct {
	src  source.Source
	opts pickup.Options

	// refreshMu serializes refreshes; mu guards the fields below.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	snap      Snapshot
	orders    map[string]model.Order

	now func() time.Time
}

func New(src source.Source, opts pickup.Options) *Calendar {
	return &Calendar{
		src:    src,
		opts:   opts,
		orders: map[string]model.Order{},
		now:    time.Now,
	}
}

// Refresh fetches orders and re-derives events when the order list changed.
// It reports whether a new snapshot was published. On error the previous
// snapshot stays in place.
func (c *Calendar) Refresh(ctx context.Context) (bool, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	orders, err := c.src.Orders(ctx)
	if err != nil {
		return false, fmt.Errorf("load orders: %w", err)
	}

	version, err := versionOf(orders)
	if err != nil {
		return false, err
	}

	c.mu.RLock()
	unchanged := c.snap.Version == version
	c.mu.RUnlock()
	if unchanged {
		c.mu.Lock()
		c.snap.RefreshedAt = c.now()
		c.mu.Unlock()
		appLog.Debug("calendar unchanged", "version", version[:12])
		return false, nil
	}

	events, err := pickup.Derive(orders, c.opts)
	if err != nil {
		return false, fmt.Errorf("derive events: %w", err)
	}

	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	c.mu.Lock()
	c.snap = Snapshot{Events: events, Version: version, RefreshedAt: c.now()}
	c.orders = byID
	c.mu.Unlock()

	appLog.Info("calendar refreshed", "orders", len(orders), "events", len(events), "version", version[:12])
	return true, nil
}

// Snapshot returns the current snapshot. Callers must not modify Events.
func (c *Calendar) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Order returns the full order behind an order event.
func (c *Calendar) Order(id string) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	return o, ok
}

// Options returns the derivation options the calendar was built with.
func (c *Calendar) Options() pickup.Options {
	return c.opts
}

// versionOf hashes the order list so unchanged data skips derivation.
func versionOf(orders []model.Order) (string, error) {
	data, err := json.Marshal(orders)
	if err != nil {
		return "", fmt.Errorf("hash orders: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
