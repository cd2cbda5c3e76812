package domain

import "context"

// Geocoder resolves a free-text place name to coordinates.
type Geocoder interface {
	// Search looks up a place name and returns the best match.
	// found is false when the provider has no result for the query.
	Search(ctx context.Context, query string) (coord Coordinate, found bool, err error)
}
