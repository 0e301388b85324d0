package domain

import "time"

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within latitude/longitude bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// KnownLocation is a position together with the time it was reported.
type KnownLocation struct {
	Coordinates
	UpdatedAt time.Time `json:"updated_at"`
}
