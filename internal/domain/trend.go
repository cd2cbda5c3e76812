package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	MetricSoilMoisture = "Soil Moisture"
	MetricErosionRisk  = "Erosion Risk"

	TrendUp   = "up"
	TrendDown = "down"

	// heavyRainThresholdMm is the daily precipitation above which a day
	// counts as an erosion-relevant heavy rain event.
	heavyRainThresholdMm = 20.0

	// trendWindowDays is the size of each comparison window for trends.
	trendWindowDays = 30
)

// Metric is one derived land-health indicator for a user.
type Metric struct {
	UserID    string
	Type      string
	Value     string
	Change    string
	Trend     string
	UpdatedAt time.Time
}

// ComputeMetrics derives the soil moisture and erosion risk metrics from a
// chronological series of daily precipitation values.
func ComputeMetrics(userID string, dailyPrecipMm []float64) []Metric {
	now := clock.Now().UTC()
	return []Metric{
		soilMoistureMetric(userID, dailyPrecipMm, now),
		erosionRiskMetric(userID, dailyPrecipMm, now),
	}
}

// soilMoistureMetric compares mean precipitation over the latest window
// against the window before it. When no previous window exists, or its mean
// is zero, the change is omitted and the trend reported as down.
func soilMoistureMetric(userID string, precip []float64, now time.Time) Metric {
	recent, previous := splitTrendWindows(precip)
	recentMean := meanOrZero(recent)
	previousMean := meanOrZero(previous)

	metric := Metric{
		UserID:    userID,
		Type:      MetricSoilMoisture,
		Value:     fmt.Sprintf("%.1fmm", recentMean),
		Trend:     TrendDown,
		UpdatedAt: now,
	}
	if previousMean == 0 {
		return metric
	}

	changePct := math.Abs(recentMean-previousMean) / previousMean * 100
	metric.Change = fmt.Sprintf("%.1f%%", changePct)
	if recentMean > previousMean {
		metric.Trend = TrendUp
	}
	return metric
}

// erosionRiskMetric grades risk by the number of heavy rain days in the
// latest window.
func erosionRiskMetric(userID string, precip []float64, now time.Time) Metric {
	recent, _ := splitTrendWindows(precip)
	heavyDays := 0
	for _, mm := range recent {
		if mm > heavyRainThresholdMm {
			heavyDays++
		}
	}

	metric := Metric{
		UserID:    userID,
		Type:      MetricErosionRisk,
		Change:    fmt.Sprintf("%d events", heavyDays),
		UpdatedAt: now,
	}
	switch {
	case heavyDays > 5:
		metric.Value = "High"
		metric.Trend = TrendUp
	case heavyDays > 2:
		metric.Value = "Medium"
		metric.Trend = TrendDown
	default:
		metric.Value = "Low"
		metric.Trend = TrendDown
	}
	return metric
}

// splitTrendWindows returns the latest trendWindowDays samples and the
// trendWindowDays samples preceding them. Either slice may be shorter, or
// empty, when the series does not cover two full windows.
func splitTrendWindows(precip []float64) (recent, previous []float64) {
	n := len(precip)
	recentStart := n - trendWindowDays
	if recentStart < 0 {
		recentStart = 0
	}
	previousStart := recentStart - trendWindowDays
	if previousStart < 0 {
		previousStart = 0
	}
	return precip[recentStart:], precip[previousStart:recentStart]
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}
