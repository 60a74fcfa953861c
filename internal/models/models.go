package models

import "time"

// StopKind classifies a stop by its GTFS location_type code.
type StopKind string

const (
	StopStation  StopKind = "station"
	StopPlatform StopKind = "platform"
	StopEntrance StopKind = "entrance"
	StopOther    StopKind = "other"
)

// EtaSource tags how a departure's final time was derived.
type EtaSource string

const (
	SourcePrediction EtaSource = "prediction"
	SourceSchedule   EtaSource = "schedule"
	SourceBlended    EtaSource = "blended"
	SourceUnknown    EtaSource = "unknown"
)

// DepartureStatus is the normalized service status of a departure.
type DepartureStatus string

const (
	StatusOnTime    DepartureStatus = "on_time"
	StatusDelayed   DepartureStatus = "delayed"
	StatusCancelled DepartureStatus = "cancelled"
	StatusSkipped   DepartureStatus = "skipped"
	StatusNoService DepartureStatus = "no_service"
	StatusUnknown   DepartureStatus = "unknown"
)

// Route represents a transit route
type Route struct {
	ID                    string   `json:"id"`
	ShortName             string   `json:"shortName"`
	LongName              string   `json:"longName"`
	Color                 string   `json:"color"`
	TextColor             string   `json:"textColor"`
	Type                  int      `json:"type"`
	SortOrder             int      `json:"sortOrder"`
	DirectionNames        []string `json:"directionNames,omitempty"`
	DirectionDestinations []string `json:"directionDestinations,omitempty"`
	LineID                string   `json:"lineId,omitempty"`
}

// Line groups related routes for rider-facing display
type Line struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
	Color     string `json:"color"`
	TextColor string `json:"textColor"`
	SortOrder int    `json:"sortOrder"`
}

// Stop represents a physical stop location (station, platform, entrance...)
type Stop struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	LocationType    int     `json:"locationType"`
	PlatformCode    string  `json:"platformCode,omitempty"`
	ParentStationID string  `json:"parentStationId,omitempty"`
}

// Vehicle is a live vehicle position snapshot
type Vehicle struct {
	ID                  string     `json:"id"`
	Label               string     `json:"label"`
	Lat                 float64    `json:"lat"`
	Lng                 float64    `json:"lng"`
	Bearing             int        `json:"bearing"`
	CurrentStatus       string     `json:"currentStatus"`
	CurrentStopSequence *int       `json:"currentStopSequence,omitempty"`
	DirectionID         *int       `json:"directionId,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
	RouteID             string     `json:"routeId,omitempty"`
	TripID              string     `json:"tripId,omitempty"`
	StopID              string     `json:"stopId,omitempty"`
}

// Prediction is a live departure/arrival prediction for one trip at one stop
type Prediction struct {
	ID            string     `json:"id"`
	ArrivalTime   *time.Time `json:"arrivalTime,omitempty"`
	DepartureTime *time.Time `json:"departureTime,omitempty"`
	DirectionID   *int       `json:"directionId,omitempty"`
	Status        string     `json:"status,omitempty"`
	StopSequence  *int       `json:"stopSequence,omitempty"`
	RouteID       string     `json:"routeId,omitempty"`
	TripID        string     `json:"tripId,omitempty"`
	StopID        string     `json:"stopId,omitempty"`
}

// Schedule is a static timetable row for one trip at one stop
type Schedule struct {
	ID            string     `json:"id"`
	ArrivalTime   *time.Time `json:"arrivalTime,omitempty"`
	DepartureTime *time.Time `json:"departureTime,omitempty"`
	DirectionID   *int       `json:"directionId,omitempty"`
	StopSequence  *int       `json:"stopSequence,omitempty"`
	StopHeadsign  string     `json:"stopHeadsign,omitempty"`
	TripHeadsign  string     `json:"tripHeadsign,omitempty"`
	RouteID       string     `json:"routeId,omitempty"`
	TripID        string     `json:"tripId,omitempty"`
	StopID        string     `json:"stopId,omitempty"`
}

// ActivePeriod is a time range during which an alert applies
type ActivePeriod struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Alert is a service alert affecting one or more routes
type Alert struct {
	ID               string         `json:"id"`
	Header           string         `json:"header"`
	Description      string         `json:"description,omitempty"`
	Effect           string         `json:"effect,omitempty"`
	Severity         int            `json:"severity"`
	Lifecycle        string         `json:"lifecycle,omitempty"`
	ActivePeriods    []ActivePeriod `json:"activePeriods,omitempty"`
	InformedRouteIDs []string       `json:"informedRouteIds,omitempty"`
	UpdatedAt        *time.Time     `json:"updatedAt,omitempty"`
}

// Trip is one scheduled run of a vehicle along a route
type Trip struct {
	ID          string `json:"id"`
	Headsign    string `json:"headsign"`
	DirectionID *int   `json:"directionId,omitempty"`
	RouteID     string `json:"routeId,omitempty"`
	ShapeID     string `json:"shapeId,omitempty"`
}

// Shape is an encoded polyline describing a route's path
type Shape struct {
	ID       string `json:"id"`
	Polyline string `json:"polyline"`
}

// BlendedDeparture is the canonical departure unit: one schedule row, one
// prediction row, or a reconciled pair. Immutable once constructed;
// interpolation copies before transforming.
type BlendedDeparture struct {
	StopID             string          `json:"stopId"`
	StopName           string          `json:"stopName,omitempty"`
	RouteID            string          `json:"routeId"`
	DirectionID        *int            `json:"directionId,omitempty"`
	TripID             string          `json:"tripId"`
	StopSequence       *int            `json:"stopSequence,omitempty"`
	Headsign           string          `json:"headsign,omitempty"`
	ScheduledTime      *time.Time      `json:"scheduledTime,omitempty"`
	PredictedTime      *time.Time      `json:"predictedTime,omitempty"`
	FinalTime          *time.Time      `json:"finalTime,omitempty"`
	EtaMinutes         *int            `json:"etaMinutes,omitempty"`
	EtaSource          EtaSource       `json:"etaSource"`
	Status             DepartureStatus `json:"status"`
	DiscrepancyMinutes *int            `json:"discrepancyMinutes,omitempty"`
}

// Snapshot is a time-ordered departure list for one stop
type Snapshot struct {
	StopID      string             `json:"stopId"`
	StopName    string             `json:"stopName,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Departures  []BlendedDeparture `json:"departures"`
}

// StationGroup collects the platform stops that roll up to one canonical
// boardable station. Ephemeral: rebuilt on every aggregation call.
type StationGroup struct {
	Station         Stop     `json:"station"`
	PlatformStopIDs []string `json:"platformStopIds"`
	MinDistanceM    float64  `json:"minDistanceMeters"`
}

// IntPtr is a convenience for building optional ordinal fields.
func IntPtr(v int) *int { return &v }

// TimePtr is a convenience for building optional timestamps.
func TimePtr(t time.Time) *time.Time { return &t }
