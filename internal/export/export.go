// Package export writes the calendar as the CSV and plain-text tables the
// back office downloads.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"pickupcal/internal/model"
)

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("export: no rows")

// BaseName prefixes download file names.
const BaseName = "calendrier-retraits"

var header = []string{"Date", "Type", "Titre", "Client", "Statut", "Total", "Nom du jour férié"}

// Row is one exported line.
type Row struct {
	Date        string
	Type        string
	Title       string
	Client      string
	Status      string
	Total       string
	HolidayName string
}

func (r Row) fields() []string {
	return []string{r.Date, r.Type, r.Title, r.Client, r.Status, r.Total, r.HolidayName}
}

// Rows converts events to export rows in the given order.
func Rows(events []model.CalendarEvent) []Row {
	rows := make([]Row, 0, len(events))
	for _, e := range events {
		r := Row{
			Date:  e.Date.Format("02/01/2006"),
			Title: e.Title,
		}
		switch {
		case e.Kind == model.KindHoliday:
			r.Type = "Jour férié"
			if e.Holiday != nil {
				r.HolidayName = e.Holiday.Name
			}
		case e.Order != nil:
			r.Type = "Commande"
			r.Client = e.Order.CustomerName
			r.Status = e.Order.Status
			if r.Status == "" {
				r.Status = "N/A"
			}
			r.Total = e.Order.TotalAmount.StringFixed(2) + "€"
		default:
			r.Type = "Commande"
		}
		rows = append(rows, r)
	}
	return rows
}

// WriteCSV writes a header line followed by one line per event.
func WriteCSV(w io.Writer, events []model.CalendarEvent) error {
	if len(events) == 0 {
		return ErrNoRows
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range Rows(events) {
		if err := cw.Write(r.fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTXT writes a padded table with " | " column separators and a
// "-+-" rule under the header.
func WriteTXT(w io.Writer, events []model.CalendarEvent) error {
	if len(events) == 0 {
		return ErrNoRows
	}

	rows := Rows(events)
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range rows {
		for i, f := range r.fields() {
			if n := utf8.RuneCountInString(f); n > widths[i] {
				widths[i] = n
			}
		}
	}

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, padJoin(header, widths))

	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	lines = append(lines, strings.Join(rule, "-+-"))

	for _, r := range rows {
		lines = append(lines, padJoin(r.fields(), widths))
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func padJoin(fields []string, widths []int) string {
	padded := make([]string, len(fields))
	for i, f := range fields {
		padded[i] = f + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(f))
	}
	return strings.Join(padded, " | ")
}

// Filename returns the download name for a format, e.g.
// "calendrier-retraits_2025-06-01.csv".
func Filename(format string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", BaseName, now.Format(model.DateKeyLayout), format)
}
