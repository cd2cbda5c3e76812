// Package nominatim implements domain.Geocoder using the OpenStreetMap
// Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// Client looks up place names via Nominatim. Nominatim's usage policy
// requires an identifying User-Agent on every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client.
func NewClient(userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://nominatim.openstreetmap.org/search",
		userAgent:  userAgent,
		metrics:    metrics,
		logger:     logger,
	}
}

// Search resolves a free-text place name to coordinates using the first
// result. An empty result list is found=false, not an error.
func (c *Client) Search(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues("nominatim").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("nominatim", "error").Inc()
		return domain.Coordinate{}, false, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.ProviderRequests.WithLabelValues("nominatim", "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinate{}, false, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("nominatim", "error").Inc()
		return domain.Coordinate{}, false, fmt.Errorf("decode response: %w", err)
	}

	c.metrics.ProviderRequests.WithLabelValues("nominatim", "success").Inc()

	if len(results) == 0 {
		return domain.Coordinate{}, false, nil
	}

	// Nominatim returns lat/lon as JSON strings.
	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return domain.Coordinate{}, false, fmt.Errorf("parse coordinates %q,%q", results[0].Lat, results[0].Lon)
	}

	return domain.Coordinate{Lat: lat, Lon: lon}, true, nil
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
