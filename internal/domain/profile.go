package domain

// Profile is a read-only snapshot of a user's location settings for one
// batch run. LandSizeHa may be zero when the user has not filled it in.
type Profile struct {
	UserID     string
	Location   string
	LandSizeHa float64
}

// Coordinate is a WGS-84 latitude/longitude pair. Derived per run from the
// profile's location string and never persisted.
type Coordinate struct {
	Lat float64
	Lon float64
}
