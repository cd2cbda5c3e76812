package domain

import "sort"

const (
	// baseSequestrationTonsPerHa is the assumed annual sequestration of
	// managed regenerating land before any vegetation improvement bonus.
	baseSequestrationTonsPerHa = 3.5

	// ndviImprovementScale converts NDVI delta over the window into
	// additional tons per hectare.
	ndviImprovementScale = 10.0

	// creditPricePerTonUSD is the flat carbon credit valuation.
	creditPricePerTonUSD = 15.0
)

// CarbonEstimate is a point-in-time sequestration estimate for a user's land.
type CarbonEstimate struct {
	UserID          string
	EstimatedOn     string
	SequesteredTons float64
	AreaHa          float64
	CreditValueUSD  float64
}

// EstimateCarbon derives a carbon sequestration estimate from the
// chronological per-month NDVI series and the land area. Returns false when
// there is no vegetation data or no usable land area.
func EstimateCarbon(userID string, ndviByMonth []float64, areaHa float64) (CarbonEstimate, bool) {
	if len(ndviByMonth) == 0 || areaHa <= 0 {
		return CarbonEstimate{}, false
	}

	improvement := ndviByMonth[len(ndviByMonth)-1] - ndviByMonth[0]
	perHa := baseSequestrationTonsPerHa
	if improvement > 0 {
		perHa += improvement * ndviImprovementScale
	}
	tons := areaHa * perHa

	return CarbonEstimate{
		UserID:          userID,
		EstimatedOn:     clock.Now().UTC().Format("2006-01-02"),
		SequesteredTons: tons,
		AreaHa:          areaHa,
		CreditValueUSD:  tons * creditPricePerTonUSD,
	}, true
}

// SortedMonths returns the keys of a per-month map in chronological order.
// "YYYY-MM" keys sort correctly as plain strings.
func SortedMonths[V any](byMonth map[string]V) []string {
	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)
	return months
}
