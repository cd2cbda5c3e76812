package domain

import "time"

// WeatherDay is one day of archive weather for a location, dates in
// "YYYY-MM-DD" form as returned by the archive API.
type WeatherDay struct {
	Date             string
	PrecipitationMm  float64
	TemperatureMeanC float64
}

// SolarDay is one day of satellite-derived solar and precipitation data,
// dates in compact "YYYYMMDD" form as returned by the provider.
type SolarDay struct {
	Date            string
	Irradiance      float64
	PrecipitationMm float64
}

// ReportingWindow returns the trailing window ending today, spanning the
// requested number of months back.
func ReportingWindow(months int) (start, end time.Time) {
	end = clock.Now().UTC()
	start = end.AddDate(0, -months, 0)
	return start, end
}
