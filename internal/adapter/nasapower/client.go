// Package nasapower fetches daily solar irradiance and corrected
// precipitation from the NASA POWER temporal API.
package nasapower

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/regenagro/enviro-data-batch/internal/adapter/provider"
	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
)

// ErrMalformedResponse marks a payload missing the expected parameter
// container. Distinct from transport rejections (provider.ErrRejected).
var ErrMalformedResponse = fmt.Errorf("malformed nasa power response")

// Client fetches the ALLSKY_SFC_SW_DWN and PRECTOTCORR daily parameters.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	backoff    provider.Backoff
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NASA POWER client with the shared transport
// resilience settings.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://power.larc.nasa.gov/api/temporal/daily/point",
		breaker:    provider.NewBreaker("nasapower"),
		backoff:    provider.DefaultBackoff(),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchDaily retrieves the daily series for the given window in one request.
// Samples are returned in chronological date order. Days present in only one
// parameter dictionary are dropped, as are POWER's negative fill values
// (typically -999 for days the satellite product has no data).
func (c *Client) FetchDaily(ctx context.Context, coord domain.Coordinate, start, end time.Time) ([]domain.SolarDay, error) {
	buildRequest := func() (*http.Request, error) {
		params := url.Values{
			"parameters": {"ALLSKY_SFC_SW_DWN,PRECTOTCORR"},
			"community":  {"AG"},
			"latitude":   {fmt.Sprintf("%.4f", coord.Lat)},
			"longitude":  {fmt.Sprintf("%.4f", coord.Lon)},
			"start":      {start.UTC().Format("20060102")},
			"end":        {end.UTC().Format("20060102")},
			"format":     {"JSON"},
		}
		return http.NewRequest(http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	}

	reqStart := time.Now()
	resp, err := provider.Do(ctx, c.httpClient, c.breaker, c.backoff, buildRequest)
	c.metrics.ProviderDuration.WithLabelValues("nasapower").Observe(time.Since(reqStart).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("nasapower", "error").Inc()
		return nil, fmt.Errorf("nasa power request: %w", err)
	}
	defer resp.Body.Close()

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("nasapower", "error").Inc()
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	days, err := mapResponse(payload)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("nasapower", "error").Inc()
		return nil, err
	}

	c.metrics.ProviderRequests.WithLabelValues("nasapower", "success").Inc()
	c.logger.Debug("nasa power series fetched", "days", len(days), "lat", coord.Lat, "lon", coord.Lon)
	return days, nil
}

func mapResponse(payload response) ([]domain.SolarDay, error) {
	if payload.Properties == nil || payload.Properties.Parameter == nil {
		return nil, fmt.Errorf("%w: missing parameter container", ErrMalformedResponse)
	}

	solar := payload.Properties.Parameter.Irradiance
	precip := payload.Properties.Parameter.Precipitation
	if solar == nil || precip == nil {
		return nil, fmt.Errorf("%w: missing parameter series", ErrMalformedResponse)
	}

	days := make([]domain.SolarDay, 0, len(solar))
	for date, irradiance := range solar {
		precipitation, ok := precip[date]
		if !ok {
			continue
		}
		if irradiance < 0 || precipitation < 0 {
			continue // POWER fill value for missing data
		}
		days = append(days, domain.SolarDay{
			Date:            date,
			Irradiance:      irradiance,
			PrecipitationMm: precipitation,
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// NASA POWER API response types.

type response struct {
	Properties *properties `json:"properties"`
}

type properties struct {
	Parameter *parameter `json:"parameter"`
}

type parameter struct {
	Irradiance    map[string]float64 `json:"ALLSKY_SFC_SW_DWN"`
	Precipitation map[string]float64 `json:"PRECTOTCORR"`
}
