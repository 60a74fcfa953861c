// Package topology classifies stops and resolves the boardable parent
// station for platform-level stops. Pure functions, no I/O.
package topology

import "github.com/transitpulse/transitpulse_core/internal/models"

// Classify maps a stop's GTFS location_type code to a StopKind.
// 1 is a station, 2 an entrance, 0 and 4 platform-level stops.
func Classify(stop models.Stop) models.StopKind {
	switch stop.LocationType {
	case 1:
		return models.StopStation
	case 2:
		return models.StopEntrance
	case 0, 4:
		return models.StopPlatform
	default:
		return models.StopOther
	}
}

// IsBoardable reports whether a rider can wait at this stop.
func IsBoardable(stop models.Stop) bool {
	kind := Classify(stop)
	return kind == models.StopStation || kind == models.StopPlatform
}

// ResolveBoardableParent returns the canonical boardable stop for display:
// the stop itself when it is a station or platform, otherwise its parent
// station looked up in stopIndex. A platform with a missing or unresolvable
// parent is still boardable on its own; an entrance with no usable parent
// resolves to nil.
func ResolveBoardableParent(stop models.Stop, stopIndex map[string]models.Stop) *models.Stop {
	if IsBoardable(stop) {
		if stop.ParentStationID != "" {
			if parent, ok := stopIndex[stop.ParentStationID]; ok && IsBoardable(parent) {
				return &parent
			}
		}
		s := stop
		return &s
	}
	if stop.ParentStationID == "" {
		return nil
	}
	parent, ok := stopIndex[stop.ParentStationID]
	if !ok || !IsBoardable(parent) {
		return nil
	}
	return &parent
}

// SiblingPlatforms returns the ids of all stops that roll up to the given
// canonical station, including the station id itself.
func SiblingPlatforms(station models.Stop, stops []models.Stop) []string {
	ids := []string{station.ID}
	for _, s := range stops {
		if s.ParentStationID == station.ID && s.ID != station.ID {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
