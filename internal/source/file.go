package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"pickupcal/internal/model"
)

// FileSource reads orders from a JSON export in the remote row shape.
type FileSource struct {
	Path string
	// Location is where timestamp pickup dates are read; nil means time.Local.
	Location *time.Location
}

func (s FileSource) Orders(ctx context.Context) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}
	return DecodeOrders(data, s.Location)
}
