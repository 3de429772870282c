package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickupcal/internal/calendar"
	"pickupcal/internal/config"
	"pickupcal/internal/pickup"
	"pickupcal/internal/source"
)

const ordersJSON = `[{"id":"A1","order_number":"CMD-1","created_at":"2025-07-10T09:00:00Z",
  "customer_name":"Marie","payment_status":"ready","total_amount":"18.40",
  "commande_items":[{"produit_nom":"Pain","quantity":1,"pickup_date":null},
                    {"produit_nom":"Galette","quantity":2,"pickup_date":"2025-07-14"}]}]`

func testCalendar(t *testing.T) (*calendar.Calendar, *config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(ordersJSON), 0o600))

	conf := config.DefaultConfig()
	conf.Source.Path = path
	cal := calendar.New(source.FileSource{Path: path, Location: time.UTC}, pickup.Options{
		IncludeHolidays: true,
		StartYear:       2025,
		EndYear:         2025,
		Location:        time.UTC,
	})
	return cal, conf
}

func TestRunOnceFormats(t *testing.T) {
	cal, conf := testCalendar(t)

	var buf bytes.Buffer
	require.NoError(t, runOnce(context.Background(), cal, conf, "ics", &buf))
	assert.Equal(t, 13, strings.Count(buf.String(), "BEGIN:VEVENT"))

	buf.Reset()
	require.NoError(t, runOnce(context.Background(), cal, conf, "csv", &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Date,Type,Titre"))

	buf.Reset()
	require.NoError(t, runOnce(context.Background(), cal, conf, "json", &buf))
	assert.Contains(t, buf.String(), `"id": "A1:2025-07-14"`)

	assert.Error(t, runOnce(context.Background(), cal, conf, "pdf", &buf))
}

func TestOpenSource(t *testing.T) {
	conf := config.DefaultConfig()

	src, closeFn, err := openSource(conf)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, source.FileSource{}, src)

	conf.Source.Kind = config.SourceREST
	conf.Source.URL = "https://example.supabase.co/rest/v1/commandes"
	conf.Source.CacheDir = t.TempDir()
	src, _, err = openSource(conf)
	require.NoError(t, err)
	assert.IsType(t, &source.RESTSource{}, src)

	conf.Source.Kind = "ftp"
	_, _, err = openSource(conf)
	assert.Error(t, err)
}
