package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const agentLocationKey = "agents:locations"

// LocationStore mirrors agent positions into a Redis geo index for readers
// outside the service. Dispatch does not read it back.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores an agent's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, agentID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, agentLocationKey, &redis.GeoLocation{
		Name:      agentID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}
