// Package domain models per-user environmental aggregates for regenerative
// land monitoring.
//
// # Data Sources
//
// Daily weather history comes from the Open-Meteo archive API
// (https://archive-api.open-meteo.com): one flat array per field
// (precipitation_sum in mm, temperature_2m_mean in °C), index-aligned to a
// shared "time" array of ISO dates ("2024-04-26").
//
// Solar irradiance and corrected precipitation come from the NASA POWER
// daily point API (https://power.larc.nasa.gov): dictionaries keyed by
// compact date strings ("20240426") for ALLSKY_SFC_SW_DWN (all-sky surface
// shortwave downward irradiance, kWh/m²/day) and PRECTOTCORR (corrected
// precipitation, mm/day). POWER uses negative fill values (typically -999)
// for days without data; those are dropped at the fetch boundary.
//
// Both sources cover the trailing six calendar months ending at run time.
// The two date sets are not guaranteed to match, so each source is bucketed
// independently by its own dates.
//
// # Monthly Buckets
//
// A monthly bucket is identified by a "YYYY-MM" key taken from the date
// prefix. Rainfall buckets hold the SUM of daily precipitation; intensity
// fields (solar irradiance, POWER precipitation) hold the arithmetic MEAN.
// Months with no samples are absent from the output, never zero-filled.
//
// # Vegetation Index Proxy
//
// The NDVI value stored per (user, month) is a heuristic proxy derived from
// monthly solar and precipitation averages:
//
//	ndvi = clamp(0.1, 0.9, (avgPrecip*0.01 + avgSolar*0.001) / 10)
//
// It is NOT real remote-sensing NDVI; no spectral imagery is involved.
// Downstream dashboards and the carbon estimator assume exactly this scale
// and its [0.1, 0.9] clamp, so do not "improve" the formula.
//
// # Trend Metrics
//
// Soil Moisture compares the mean of the most recent 30 daily precipitation
// samples against the mean of the 30 before those. Erosion Risk counts
// heavy-rain days (>20mm) in the recent window: more than 5 is High, more
// than 2 is Medium, otherwise Low. Exactly one live metric row exists per
// (user, metric type); re-running a batch overwrites rather than duplicates.
//
// # Carbon Estimates
//
// Carbon sequestration is a coarse planning figure, not financial-grade
// accounting: a 3.5 tCO2/ha/yr baseline for regenerative practice plus a
// bonus scaled from NDVI improvement across the window, priced at a flat
// 15 USD/t. See [EstimateCarbon].
package domain
