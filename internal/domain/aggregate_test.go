package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func TestMonthlyRainfallSumsPerMonth(t *testing.T) {
	days := []WeatherDay{
		{Date: testDate(2024, 1, 5), PrecipitationMm: 3.2},
		{Date: testDate(2024, 1, 17), PrecipitationMm: 1.8},
		{Date: testDate(2024, 2, 2), PrecipitationMm: 10.0},
	}

	totals := MonthlyRainfall(days)

	require.Len(t, totals, 2)
	assert.InDelta(t, 5.0, totals["2024-01"], 1e-9)
	assert.InDelta(t, 10.0, totals["2024-02"], 1e-9)
}

func TestMonthlyRainfallOrderIndependent(t *testing.T) {
	var days []WeatherDay
	for month := 1; month <= 3; month++ {
		for day := 1; day <= 28; day++ {
			days = append(days, WeatherDay{
				Date:            testDate(2023, month, day),
				PrecipitationMm: float64(day) * 0.5,
			})
		}
	}
	ordered := MonthlyRainfall(days)

	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	shuffled := MonthlyRainfall(days)

	if diff := cmp.Diff(ordered, shuffled); diff != "" {
		t.Errorf("monthly totals changed with input order (-ordered +shuffled):\n%s", diff)
	}
}

func TestMonthlyRainfallSkipsMalformedDates(t *testing.T) {
	days := []WeatherDay{
		{Date: "2024-03-10", PrecipitationMm: 4.0},
		{Date: "bad", PrecipitationMm: 99.0},
		{Date: "", PrecipitationMm: 50.0},
	}

	totals := MonthlyRainfall(days)

	require.Len(t, totals, 1)
	assert.InDelta(t, 4.0, totals["2024-03"], 1e-9)
}

func TestMonthlyVegetationAverages(t *testing.T) {
	days := []SolarDay{
		{Date: "20240101", Irradiance: 4.0, PrecipitationMm: 2.0},
		{Date: "20240115", Irradiance: 6.0, PrecipitationMm: 4.0},
		{Date: "20240201", Irradiance: 3.0, PrecipitationMm: 9.0},
	}

	months := MonthlyVegetation(days)

	require.Len(t, months, 2)
	jan := months["2024-01"]
	assert.InDelta(t, 5.0, jan.AvgIrradiance, 1e-9)
	assert.InDelta(t, 3.0, jan.AvgPrecipitation, 1e-9)
	assert.InDelta(t, VegetationIndex(5.0, 3.0), jan.NDVI, 1e-9)

	feb := months["2024-02"]
	assert.InDelta(t, 3.0, feb.AvgIrradiance, 1e-9)
	assert.InDelta(t, 9.0, feb.AvgPrecipitation, 1e-9)
}

func TestMonthlyVegetationCompactDateMapping(t *testing.T) {
	days := []SolarDay{
		{Date: "20231207", Irradiance: 5.5, PrecipitationMm: 0.0},
	}

	months := MonthlyVegetation(days)

	_, ok := months["2023-12"]
	assert.True(t, ok)
}

func TestVegetationIndexClamps(t *testing.T) {
	assert.InDelta(t, 0.1, VegetationIndex(0, 0), 1e-9)
	assert.InDelta(t, 0.9, VegetationIndex(10000, 1000), 1e-9)

	// (150*0.01 + 10*0.001) / 10 = 0.151
	assert.InDelta(t, 0.151, VegetationIndex(10, 150), 1e-9)
	// (240*0.01 + 100*0.001) / 10 = 0.25
	assert.InDelta(t, 0.25, VegetationIndex(100, 240), 1e-9)
}
