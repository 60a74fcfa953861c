package models

import (
	"log"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/jsonapi"
)

// Decoding of JSON:API documents into domain structs. Rows that fail to
// decode are logged and skipped so one malformed resource never poisons a
// whole collection.

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

// DecodeRoutes maps a routes document to []Route.
func DecodeRoutes(doc *jsonapi.Document) ([]Route, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Route, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			ShortName             string   `json:"short_name"`
			LongName              string   `json:"long_name"`
			Color                 string   `json:"color"`
			TextColor             string   `json:"text_color"`
			Type                  int      `json:"type"`
			SortOrder             int      `json:"sort_order"`
			DirectionNames        []string `json:"direction_names"`
			DirectionDestinations []string `json:"direction_destinations"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping route %s: %v", r.ID, err)
			continue
		}
		out = append(out, Route{
			ID:                    r.ID,
			ShortName:             attrs.ShortName,
			LongName:              attrs.LongName,
			Color:                 attrs.Color,
			TextColor:             attrs.TextColor,
			Type:                  attrs.Type,
			SortOrder:             attrs.SortOrder,
			DirectionNames:        attrs.DirectionNames,
			DirectionDestinations: attrs.DirectionDestinations,
			LineID:                jsonapi.RelatedID(r, "line"),
		})
	}
	return out, nil
}

// DecodeLines maps a lines document to []Line.
func DecodeLines(doc *jsonapi.Document) ([]Line, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			ShortName string `json:"short_name"`
			LongName  string `json:"long_name"`
			Color     string `json:"color"`
			TextColor string `json:"text_color"`
			SortOrder int    `json:"sort_order"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping line %s: %v", r.ID, err)
			continue
		}
		out = append(out, Line{
			ID:        r.ID,
			ShortName: attrs.ShortName,
			LongName:  attrs.LongName,
			Color:     attrs.Color,
			TextColor: attrs.TextColor,
			SortOrder: attrs.SortOrder,
		})
	}
	return out, nil
}

// DecodeStops maps a stops document to []Stop.
func DecodeStops(doc *jsonapi.Document) ([]Stop, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Stop, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Name         string  `json:"name"`
			Latitude     float64 `json:"latitude"`
			Longitude    float64 `json:"longitude"`
			LocationType int     `json:"location_type"`
			PlatformCode string  `json:"platform_code"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping stop %s: %v", r.ID, err)
			continue
		}
		out = append(out, Stop{
			ID:              r.ID,
			Name:            attrs.Name,
			Lat:             attrs.Latitude,
			Lng:             attrs.Longitude,
			LocationType:    attrs.LocationType,
			PlatformCode:    attrs.PlatformCode,
			ParentStationID: jsonapi.RelatedID(r, "parent_station"),
		})
	}
	return out, nil
}

// DecodePredictions maps a predictions document to []Prediction.
func DecodePredictions(doc *jsonapi.Document) ([]Prediction, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			ArrivalTime   *string `json:"arrival_time"`
			DepartureTime *string `json:"departure_time"`
			DirectionID   *int    `json:"direction_id"`
			Status        string  `json:"status"`
			StopSequence  *int    `json:"stop_sequence"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping prediction %s: %v", r.ID, err)
			continue
		}
		out = append(out, Prediction{
			ID:            r.ID,
			ArrivalTime:   parseTime(attrs.ArrivalTime),
			DepartureTime: parseTime(attrs.DepartureTime),
			DirectionID:   attrs.DirectionID,
			Status:        attrs.Status,
			StopSequence:  attrs.StopSequence,
			RouteID:       jsonapi.RelatedID(r, "route"),
			TripID:        jsonapi.RelatedID(r, "trip"),
			StopID:        jsonapi.RelatedID(r, "stop"),
		})
	}
	return out, nil
}

// DecodeSchedules maps a schedules document to []Schedule. Trip headsigns
// are resolved from the document's included trip resources when present.
func DecodeSchedules(doc *jsonapi.Document) ([]Schedule, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	included := doc.IncludedByKey()
	out := make([]Schedule, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			ArrivalTime   *string `json:"arrival_time"`
			DepartureTime *string `json:"departure_time"`
			DirectionID   *int    `json:"direction_id"`
			StopSequence  *int    `json:"stop_sequence"`
			StopHeadsign  string  `json:"stop_headsign"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping schedule %s: %v", r.ID, err)
			continue
		}
		tripID := jsonapi.RelatedID(r, "trip")
		tripHeadsign := ""
		if trip, ok := included["trip:"+tripID]; ok {
			var tripAttrs struct {
				Headsign string `json:"headsign"`
			}
			if err := trip.DecodeAttributes(&tripAttrs); err == nil {
				tripHeadsign = tripAttrs.Headsign
			}
		}
		out = append(out, Schedule{
			ID:            r.ID,
			ArrivalTime:   parseTime(attrs.ArrivalTime),
			DepartureTime: parseTime(attrs.DepartureTime),
			DirectionID:   attrs.DirectionID,
			StopSequence:  attrs.StopSequence,
			StopHeadsign:  attrs.StopHeadsign,
			TripHeadsign:  tripHeadsign,
			RouteID:       jsonapi.RelatedID(r, "route"),
			TripID:        tripID,
			StopID:        jsonapi.RelatedID(r, "stop"),
		})
	}
	return out, nil
}

// DecodeVehicles maps a vehicles document to []Vehicle.
func DecodeVehicles(doc *jsonapi.Document) ([]Vehicle, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Vehicle, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Label               string  `json:"label"`
			Latitude            float64 `json:"latitude"`
			Longitude           float64 `json:"longitude"`
			Bearing             int     `json:"bearing"`
			CurrentStatus       string  `json:"current_status"`
			CurrentStopSequence *int    `json:"current_stop_sequence"`
			DirectionID         *int    `json:"direction_id"`
			UpdatedAt           *string `json:"updated_at"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping vehicle %s: %v", r.ID, err)
			continue
		}
		out = append(out, Vehicle{
			ID:                  r.ID,
			Label:               attrs.Label,
			Lat:                 attrs.Latitude,
			Lng:                 attrs.Longitude,
			Bearing:             attrs.Bearing,
			CurrentStatus:       attrs.CurrentStatus,
			CurrentStopSequence: attrs.CurrentStopSequence,
			DirectionID:         attrs.DirectionID,
			UpdatedAt:           parseTime(attrs.UpdatedAt),
			RouteID:             jsonapi.RelatedID(r, "route"),
			TripID:              jsonapi.RelatedID(r, "trip"),
			StopID:              jsonapi.RelatedID(r, "stop"),
		})
	}
	return out, nil
}

// DecodeAlerts maps an alerts document to []Alert.
func DecodeAlerts(doc *jsonapi.Document) ([]Alert, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Header       string  `json:"header"`
			Description  string  `json:"description"`
			Effect       string  `json:"effect"`
			Severity     int     `json:"severity"`
			Lifecycle    string  `json:"lifecycle"`
			UpdatedAt    *string `json:"updated_at"`
			ActivePeriod []struct {
				Start *string `json:"start"`
				End   *string `json:"end"`
			} `json:"active_period"`
			InformedEntity []struct {
				Route string `json:"route"`
			} `json:"informed_entity"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping alert %s: %v", r.ID, err)
			continue
		}
		periods := make([]ActivePeriod, 0, len(attrs.ActivePeriod))
		for _, p := range attrs.ActivePeriod {
			periods = append(periods, ActivePeriod{Start: parseTime(p.Start), End: parseTime(p.End)})
		}
		var routeIDs []string
		seen := map[string]bool{}
		for _, e := range attrs.InformedEntity {
			if e.Route != "" && !seen[e.Route] {
				seen[e.Route] = true
				routeIDs = append(routeIDs, e.Route)
			}
		}
		out = append(out, Alert{
			ID:               r.ID,
			Header:           attrs.Header,
			Description:      attrs.Description,
			Effect:           attrs.Effect,
			Severity:         attrs.Severity,
			Lifecycle:        attrs.Lifecycle,
			ActivePeriods:    periods,
			InformedRouteIDs: routeIDs,
			UpdatedAt:        parseTime(attrs.UpdatedAt),
		})
	}
	return out, nil
}

// DecodeTrips maps a trips document to []Trip.
func DecodeTrips(doc *jsonapi.Document) ([]Trip, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Trip, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Headsign    string `json:"headsign"`
			DirectionID *int   `json:"direction_id"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping trip %s: %v", r.ID, err)
			continue
		}
		out = append(out, Trip{
			ID:          r.ID,
			Headsign:    attrs.Headsign,
			DirectionID: attrs.DirectionID,
			RouteID:     jsonapi.RelatedID(r, "route"),
			ShapeID:     jsonapi.RelatedID(r, "shape"),
		})
	}
	return out, nil
}

// DecodeShapes maps a shapes document to []Shape.
func DecodeShapes(doc *jsonapi.Document) ([]Shape, error) {
	resources, err := doc.Resources()
	if err != nil {
		return nil, err
	}
	out := make([]Shape, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Polyline string `json:"polyline"`
		}
		if err := r.DecodeAttributes(&attrs); err != nil {
			log.Printf("Warning: skipping shape %s: %v", r.ID, err)
			continue
		}
		out = append(out, Shape{ID: r.ID, Polyline: attrs.Polyline})
	}
	return out, nil
}
