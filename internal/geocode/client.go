// Package geocode resolves free-text addresses to coordinates through a
// Nominatim-compatible endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound means the address produced no results. Callers treat it as
// non-fatal: the event is saved without coordinates.
var ErrNotFound = errors.New("address not found")

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client is a rate-limited geocoding client. Public Nominatim allows at
// most one request per second.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// ResolveCoordinates returns the best-match latitude/longitude for the
// given address text.
func (c *Client) ResolveCoordinates(ctx context.Context, address string) (float64, float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}

	u := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", "gathr/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocode request failed: status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}

	c.logger.Debug("Resolved address.", "address", address, "lat", lat, "lon", lon)
	return lat, lon, nil
}
