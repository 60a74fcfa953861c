package aggregate

import (
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// HomeQuery is a validated home-snapshot request.
type HomeQuery struct {
	Lat             float64
	Lng             float64
	RadiusM         int
	Limit           int
	FavoriteStopIDs []string
}

// DepartureTime is one upcoming time within a route/direction group.
type DepartureTime struct {
	Time       time.Time              `json:"time"`
	EtaMinutes int                    `json:"etaMinutes"`
	EtaSource  models.EtaSource       `json:"etaSource"`
	Status     models.DepartureStatus `json:"status"`
	TripID     string                 `json:"tripId,omitempty"`
}

// DepartureGroup is the rider-facing row: one route in one direction at one
// station, with its next few times.
type DepartureGroup struct {
	RouteID     string          `json:"routeId"`
	DirectionID *int            `json:"directionId,omitempty"`
	Direction   string          `json:"direction"`
	Destination string          `json:"destination,omitempty"`
	Times       []DepartureTime `json:"times"`
}

// StationEntry is one canonical boardable station with merged departures.
type StationEntry struct {
	StationID       string           `json:"stationId"`
	Name            string           `json:"name"`
	Lat             float64          `json:"lat"`
	Lng             float64          `json:"lng"`
	DistanceM       *float64         `json:"distanceMeters,omitempty"`
	PlatformStopIDs []string         `json:"platformStopIds"`
	Groups          []DepartureGroup `json:"groups"`
}

// HomeSnapshot is the assembled home view.
type HomeSnapshot struct {
	Favorites   []StationEntry `json:"favorites"`
	Nearby      []StationEntry `json:"nearby"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// StationBoard is the single-station detail view.
type StationBoard struct {
	Primary     StationEntry              `json:"primary"`
	Details     []models.BlendedDeparture `json:"details"`
	GeneratedAt time.Time                 `json:"generatedAt"`
}
