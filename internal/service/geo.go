package service

import (
	"math"

	"dispatch/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// SelectNearest returns the available candidate with a known location closest
// to origin. Ties go to the earlier candidate.
func SelectNearest(candidates []*domain.Agent, origin domain.Coordinates) (*domain.Agent, error) {
	var (
		best     *domain.Agent
		bestDist float64
	)
	for _, c := range candidates {
		if c == nil || c.Status != domain.AgentStatusAvailable || c.Location == nil {
			continue
		}
		d := DistanceKm(origin, c.Location.Coordinates)
		if best == nil || d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return nil, ErrNoCandidateAvailable
	}
	return best, nil
}
