package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pickupcal/internal/calendar"
	"pickupcal/internal/config"
	"pickupcal/internal/export"
	"pickupcal/internal/holiday"
	"pickupcal/internal/ics"
	appLog "pickupcal/internal/log"
	"pickupcal/internal/model"
	"pickupcal/internal/pickup"
)

// Server exposes the derived calendar over HTTP: JSON API, exports and the
// iCalendar subscription feed.
type Server struct {
	cfg *config.Config
	cal *calendar.Calendar
	mux *http.ServeMux

	// The encoded feed is reused until the snapshot version changes.
	feedMu    sync.RWMutex
	feedCache *feedCache

	now func() time.Time
}

type feedCache struct {
	version string
	body    []byte
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cal *calendar.Calendar) *Server {
	s := &Server{
		cfg: cfg,
		cal: cal,
		mux: http.NewServeMux(),
		now: time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="pickupcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("GET /api/holiday", s.handleHoliday)
	s.mux.HandleFunc("GET /api/orders/{id}", s.handleOrder)
	s.mux.HandleFunc("GET /api/legend", s.handleLegend)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("GET /calendar.ics", s.handleFeed)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is a calendar event with its display style.
type eventDTO struct {
	model.CalendarEvent
	Date  string       `json:"date"`
	Style pickup.Style `json:"style"`
	Color string       `json:"color"`
}

type eventsResponse struct {
	Events      []eventDTO `json:"events"`
	Version     string     `json:"version"`
	RefreshedAt time.Time  `json:"refreshed_at"`
}

func toDTOs(events []model.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		style := pickup.ClassifyEventStyle(e)
		out = append(out, eventDTO{
			CalendarEvent: e,
			Date:          model.DateKey(e.Date),
			Style:         style,
			Color:         style.Hex(),
		})
	}
	return out
}

// handleEvents returns events, optionally restricted to a day range.
//
// GET /api/events?start=2025-06-01&end=2025-06-30
//   - start/end: inclusive calendar days; both or neither.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.cal.Snapshot()
	events, ok := s.rangeFilter(w, r, snap.Events)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      toDTOs(events),
		Version:     snap.Version,
		RefreshedAt: snap.RefreshedAt,
	})
}

// rangeFilter applies the optional start/end query parameters. It writes
// a 400 response and returns false on bad input.
func (s *Server) rangeFilter(w http.ResponseWriter, r *http.Request, events []model.CalendarEvent) ([]model.CalendarEvent, bool) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" && endStr == "" {
		return events, true
	}
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return nil, false
	}

	start, err := model.ParseDateKey(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return nil, false
	}
	end, err := model.ParseDateKey(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return nil, false
	}
	return pickup.FilterByRange(events, start, end), true
}

// handleDay returns the events of one day.
//
// GET /api/day?date=2025-06-10&kind=order
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := model.ParseDateKey(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var kinds []model.EventKind
	switch k := model.EventKind(q.Get("kind")); k {
	case "":
	case model.KindOrder, model.KindHoliday:
		kinds = append(kinds, k)
	default:
		writeError(w, http.StatusBadRequest, "kind must be order or holiday")
		return
	}

	snap := s.cal.Snapshot()
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      toDTOs(pickup.FilterByDay(snap.Events, day, kinds...)),
		Version:     snap.Version,
		RefreshedAt: snap.RefreshedAt,
	})
}

type holidayDTO struct {
	Date     string                `json:"date"`
	Name     string                `json:"name"`
	Category model.HolidayCategory `json:"category"`
}

func toHolidayDTO(h model.Holiday) holidayDTO {
	return holidayDTO{Date: model.DateKey(h.Date), Name: h.Name, Category: h.Category}
}

// handleHolidays lists holidays for a year range.
//
// GET /api/holidays?from=2025&to=2026&regional=1
//   - from/to default to the current year.
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := s.now().Year()

	from, err := parseIntParam(q.Get("from"), year)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a year")
		return
	}
	to, err := parseIntParam(q.Get("to"), from)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be a year")
		return
	}

	hs, err := holiday.ForRange(from, to, s.regional(r))
	if err != nil {
		var rangeErr *holiday.InvalidRangeError
		if errors.As(err, &rangeErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute holidays")
		return
	}

	out := make([]holidayDTO, 0, len(hs))
	for _, h := range hs {
		out = append(out, toHolidayDTO(h))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHoliday reports the holiday on a given day, 404 when there is none.
//
// GET /api/holiday?date=2025-07-14
func (s *Server) handleHoliday(w http.ResponseWriter, r *http.Request) {
	day, err := model.ParseDateKey(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	h, ok := holiday.Lookup(day, s.regional(r))
	if !ok {
		writeError(w, http.StatusNotFound, "not a holiday")
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTO(h))
}

// regional reads the optional "regional" flag, defaulting to the config.
func (s *Server) regional(r *http.Request) bool {
	def := s.cfg != nil && s.cfg.Holidays.IncludeRegional
	v := r.URL.Query().Get("regional")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type orderResponse struct {
	Order  model.Order `json:"order"`
	Events []eventDTO  `json:"events"`
}

// handleOrder returns an order with the pickup events derived from it.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, ok := s.cal.Order(id)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	var events []model.CalendarEvent
	for _, e := range s.cal.Snapshot().Events {
		if e.Order != nil && e.Order.OrderID == id {
			events = append(events, e)
		}
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: o, Events: toDTOs(events)})
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pickup.Legend())
}

// handleExport downloads the calendar as CSV or TXT.
//
// GET /api/export?format=csv|txt[&start=..&end=..]
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	var write func(io.Writer, []model.CalendarEvent) error
	var contentType string
	switch format {
	case "csv":
		write, contentType = export.WriteCSV, "text/csv; charset=utf-8"
	case "txt":
		write, contentType = export.WriteTXT, "text/plain; charset=utf-8"
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or txt")
		return
	}

	events, ok := s.rangeFilter(w, r, s.cal.Snapshot().Events)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, events); err != nil {
		if errors.Is(err, export.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no events to export")
			return
		}
		appLog.Error("export failed", err, "format", format)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(format, s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleFeed serves the subscription feed inline so calendar apps can
// subscribe to it.
func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	body, err := s.feed()
	if err != nil {
		appLog.Error("feed encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar feed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) feed() ([]byte, error) {
	snap := s.cal.Snapshot()

	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && fc.version == snap.Version {
		return fc.body, nil
	}

	opts := ics.FeedOptions{Stamp: snap.RefreshedAt}
	if s.cfg != nil {
		opts.Name = s.cfg.Feed.Name
		opts.TTL = s.cfg.Feed.TTL
		opts.RecurringHolidays = s.cfg.Feed.RecurringHolidays
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, snap.Events, opts); err != nil {
		return nil, err
	}

	s.feedMu.Lock()
	s.feedCache = &feedCache{version: snap.Version, body: buf.Bytes()}
	s.feedMu.Unlock()
	return buf.Bytes(), nil
}

type refreshResponse struct {
	Changed     bool      `json:"changed"`
	Version     string    `json:"version"`
	Events      int       `json:"events"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// handleRefresh forces an order refresh outside the cron schedule.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	changed, err := s.cal.Refresh(ctx)
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}

	snap := s.cal.Snapshot()
	writeJSON(w, http.StatusOK, refreshResponse{
		Changed:     changed,
		Version:     snap.Version,
		Events:      len(snap.Events),
		RefreshedAt: snap.RefreshedAt,
	})
}

// parseIntParam returns def for an empty value and an error for a
// malformed one.
func parseIntParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
