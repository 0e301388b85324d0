package domain

import "time"

// AgentStatus represents the current availability of a courier.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusOffline   AgentStatus = "offline"
)

// AgentPerformance holds the lifetime totals and rolling averages of a courier.
type AgentPerformance struct {
	CompletedDeliveries int       `json:"completed_deliveries"`
	OnTimeDeliveries    int       `json:"on_time_deliveries"`
	RatedDeliveries     int       `json:"rated_deliveries"`
	AverageDeliveryTime float64   `json:"average_delivery_time"` // minutes
	AverageRating       float64   `json:"average_rating"`
	TotalDistanceKm     float64   `json:"total_distance_km"`
	TotalEarnings       float64   `json:"total_earnings"`
	LastActiveDate      time.Time `json:"last_active_date"`
}

// OnTimeRate returns the share of completed deliveries that were on time.
func (p AgentPerformance) OnTimeRate() float64 {
	if p.CompletedDeliveries == 0 {
		return 0
	}
	return float64(p.OnTimeDeliveries) / float64(p.CompletedDeliveries)
}

// Agent is a delivery courier.
type Agent struct {
	ID          string
	Name        string
	Phone       string
	Status      AgentStatus
	Zones       []string
	Location    *KnownLocation // nil until the agent reports a position
	Performance AgentPerformance
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ServesZone reports whether the agent is allowed to take orders in zone.
func (a *Agent) ServesZone(zone string) bool {
	for _, z := range a.Zones {
		if z == zone {
			return true
		}
	}
	return false
}
