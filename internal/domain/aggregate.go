package domain

// VegetationMonth carries the per-month vegetation aggregates derived from
// solar and precipitation data.
type VegetationMonth struct {
	AvgIrradiance    float64
	AvgPrecipitation float64
	NDVI             float64
}

type bucket struct {
	irradiance    float64
	precipitation float64
	n             int
}

// MonthlyRainfall sums daily precipitation into "YYYY-MM" buckets. Days with
// malformed dates are skipped.
func MonthlyRainfall(days []WeatherDay) map[string]float64 {
	totals := make(map[string]float64)
	for _, day := range days {
		if len(day.Date) < 7 {
			continue
		}
		totals[day.Date[:7]] += day.PrecipitationMm
	}
	return totals
}

// MonthlyVegetation averages daily irradiance and precipitation into
// "YYYY-MM" buckets and derives an NDVI proxy per month. Input dates use the
// compact "YYYYMMDD" form; malformed dates are skipped.
func MonthlyVegetation(days []SolarDay) map[string]VegetationMonth {
	buckets := make(map[string]*bucket)
	for _, day := range days {
		if len(day.Date) < 6 {
			continue
		}
		month := day.Date[:4] + "-" + day.Date[4:6]
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.irradiance += day.Irradiance
		b.precipitation += day.PrecipitationMm
		b.n++
	}

	months := make(map[string]VegetationMonth, len(buckets))
	for month, b := range buckets {
		avgIrradiance := b.irradiance / float64(b.n)
		avgPrecipitation := b.precipitation / float64(b.n)
		months[month] = VegetationMonth{
			AvgIrradiance:    avgIrradiance,
			AvgPrecipitation: avgPrecipitation,
			NDVI:             VegetationIndex(avgIrradiance, avgPrecipitation),
		}
	}
	return months
}

// VegetationIndex estimates an NDVI-like vegetation index from monthly
// average irradiance and precipitation, clamped to [0.1, 0.9].
func VegetationIndex(avgIrradiance, avgPrecipitation float64) float64 {
	ndvi := (avgPrecipitation*0.01 + avgIrradiance*0.001) / 10
	if ndvi < 0.1 {
		return 0.1
	}
	if ndvi > 0.9 {
		return 0.9
	}
	return ndvi
}
