package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "pickupcal/internal/log"
	"pickupcal/internal/model"
)

// OrderSelect is the PostgREST select clause embedding order items.
const OrderSelect = "id,order_number,created_at,customer_name,payment_status,total_amount," +
	"commande_items(produit_nom,quantity,pickup_date)"

// cacheEntry holds HTTP cache metadata for the orders endpoint.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RESTSource fetches orders from a PostgREST endpoint with HTTP caching
// (ETag / Last-Modified) and a disk-backed copy of the last good body.
type RESTSource struct {
	url      string
	apiKey   string
	client   *http.Client
	cacheDir string
	loc      *time.Location
}

// NewRESTSource creates a source for the table at baseURL, e.g.
// "https://xyz.supabase.co/rest/v1/commandes".
//
// cacheDir is where the last response is kept; empty means "./var/orders-cache".
// Timestamp pickup dates are read as days in loc.
func NewRESTSource(baseURL, apiKey, cacheDir string, loc *time.Location) (*RESTSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("source url %q is not absolute", redactURL(baseURL))
	}

	q := u.Query()
	if q.Get("select") == "" {
		q.Set("select", OrderSelect)
	}
	if q.Get("order") == "" {
		q.Set("order", "created_at.asc")
	}
	u.RawQuery = q.Encode()

	if cacheDir == "" {
		cacheDir = "./var/orders-cache"
	}
	return &RESTSource{
		url:    u.String(),
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		loc:      loc,
	}, nil
}

// Orders fetches and decodes the current order list.
func (s *RESTSource) Orders(ctx context.Context) ([]model.Order, error) {
	body, _, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeOrders(body, s.loc)
}

// fetch returns the response body, honoring ETag and Last-Modified. The
// bool reports whether the body came from the disk cache.
func (s *RESTSource) fetch(ctx context.Context) ([]byte, bool, error) {
	cachePath := s.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if meta.URL == s.url {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("orders fetch start", "url", redactURL(s.url))

	resp, err := s.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("orders fetch network error, using cached body", err, "url", redactURL(s.url))
			return cachedBody, true, nil
		}
		return nil, false, fmt.Errorf("fetch orders: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, readErr
		}

		newMeta := cacheEntry{
			URL:          s.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("orders cache save failed", err, "url", redactURL(s.url))
		}

		appLog.Debug("orders fetch success", "url", redactURL(s.url), "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("orders not modified; using cache", "url", redactURL(s.url))
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("orders fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(s.url), "status", resp.StatusCode)
			return cachedBody, true, nil
		}
		return nil, false, fmt.Errorf("fetch orders: %s", resp.Status)
	}
}

func (s *RESTSource) cachePath() string {
	sum := sha256.Sum256([]byte(s.url))
	return filepath.Join(s.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host of u for logging.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
