// Package openmeteo fetches daily weather history from the Open-Meteo
// archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/regenagro/enviro-data-batch/internal/adapter/provider"
	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// ErrMalformedResponse marks a payload the provider accepted but that is
// missing the expected daily series container. Distinct from transport
// rejections (provider.ErrRejected).
var ErrMalformedResponse = fmt.Errorf("malformed open-meteo response")

// Client fetches daily precipitation and temperature series.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	backoff    provider.Backoff
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo archive client with the shared transport
// resilience settings.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://archive-api.open-meteo.com/v1/archive",
		breaker:    provider.NewBreaker("openmeteo"),
		backoff:    provider.DefaultBackoff(),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchDaily retrieves the daily series for the given window in one request.
// The returned samples preserve the provider's chronological order.
func (c *Client) FetchDaily(ctx context.Context, coord domain.Coordinate, start, end time.Time) ([]domain.WeatherDay, error) {
	buildRequest := func() (*http.Request, error) {
		params := url.Values{
			"latitude":   {fmt.Sprintf("%.4f", coord.Lat)},
			"longitude":  {fmt.Sprintf("%.4f", coord.Lon)},
			"daily":      {"precipitation_sum,temperature_2m_mean"},
			"start_date": {start.UTC().Format("2006-01-02")},
			"end_date":   {end.UTC().Format("2006-01-02")},
			"timezone":   {"auto"},
		}
		return http.NewRequest(http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	}

	reqStart := time.Now()
	resp, err := provider.Do(ctx, c.httpClient, c.breaker, c.backoff, buildRequest)
	c.metrics.ProviderDuration.WithLabelValues("openmeteo").Observe(time.Since(reqStart).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("openmeteo", "error").Inc()
		return nil, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("openmeteo", "error").Inc()
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	days, err := mapResponse(payload)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("openmeteo", "error").Inc()
		return nil, err
	}

	c.metrics.ProviderRequests.WithLabelValues("openmeteo", "success").Inc()
	c.logger.Debug("open-meteo series fetched", "days", len(days), "lat", coord.Lat, "lon", coord.Lon)
	return days, nil
}

// mapResponse validates the series container and converts the index-aligned
// arrays into samples. A value array whose length differs from the time
// array means the payload is corrupt.
func mapResponse(payload response) ([]domain.WeatherDay, error) {
	if payload.Daily == nil || len(payload.Daily.Time) == 0 {
		return nil, fmt.Errorf("%w: missing daily series", ErrMalformedResponse)
	}
	if len(payload.Daily.PrecipitationSum) != len(payload.Daily.Time) ||
		len(payload.Daily.TemperatureMean) != len(payload.Daily.Time) {
		return nil, fmt.Errorf("%w: series length mismatch", ErrMalformedResponse)
	}

	days := make([]domain.WeatherDay, 0, len(payload.Daily.Time))
	for i, date := range payload.Daily.Time {
		days = append(days, domain.WeatherDay{
			Date:             date,
			PrecipitationMm:  payload.Daily.PrecipitationSum[i],
			TemperatureMeanC: payload.Daily.TemperatureMean[i],
		})
	}
	return days, nil
}

// Open-Meteo API response types.

type response struct {
	Daily *daily `json:"daily"`
}

type daily struct {
	Time             []string  `json:"time"`
	PrecipitationSum []float64 `json:"precipitation_sum"`
	TemperatureMean  []float64 `json:"temperature_2m_mean"`
}
