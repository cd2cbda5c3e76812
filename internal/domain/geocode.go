package domain

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// coordPairRe matches a decimal "lat,lng" pair with optional minus signs,
// e.g. "-1.2921, 36.8219". Anything else is treated as a place name.
var coordPairRe = regexp.MustCompile(`^(-?\d+\.?\d*),\s*(-?\d+\.?\d*)$`)

// ParseCoordinatePair parses a "lat,lng" location string directly.
// Returns false when the string is not a numeric coordinate pair.
func ParseCoordinatePair(location string) (Coordinate, bool) {
	matches := coordPairRe.FindStringSubmatch(strings.TrimSpace(location))
	if len(matches) != 3 {
		return Coordinate{}, false
	}
	lat, errLat := strconv.ParseFloat(matches[1], 64)
	lon, errLon := strconv.ParseFloat(matches[2], 64)
	if errLat != nil || errLon != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lon: lon}, true
}

// ResolveLocation turns a profile's raw location string into coordinates.
// Numeric "lat,lng" strings are parsed without a network call; anything else
// goes through the geocoder. Lookup errors and empty results both map to
// found=false; callers treat that as a skip signal for the user, never as
// a batch-level failure.
func ResolveLocation(ctx context.Context, location string, geocoder Geocoder, logger *slog.Logger) (Coordinate, bool) {
	if coord, ok := ParseCoordinatePair(location); ok {
		return coord, true
	}

	if geocoder == nil {
		return Coordinate{}, false
	}

	coord, found, err := geocoder.Search(ctx, location)
	if err != nil {
		logger.Warn("geocoding failed, treating as not found",
			"location", location,
			"error", err,
		)
		return Coordinate{}, false
	}
	return coord, found
}
