package views

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// TripStopTime is one upcoming stop along a tracked trip.
type TripStopTime struct {
	StopID       string     `json:"stopId"`
	StopName     string     `json:"stopName,omitempty"`
	StopSequence *int       `json:"stopSequence,omitempty"`
	Time         *time.Time `json:"time,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// TripTrack is the trip tracking view: trip metadata, the live vehicle if
// one is assigned, and the upcoming stop times.
type TripTrack struct {
	Trip        models.Trip     `json:"trip"`
	Vehicle     *models.Vehicle `json:"vehicle,omitempty"`
	Upcoming    []TripStopTime  `json:"upcomingStops"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// TrackTrip joins a trip with its vehicle and cached predictions. Trips
// missing from the cache are looked up upstream before giving up.
func (b *Builder) TrackTrip(ctx context.Context, tripID string) (*TripTrack, error) {
	trip, err := b.lookupTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	track := &TripTrack{Trip: *trip, GeneratedAt: time.Now()}

	if vehiclesEntry := b.store.GetVehicles(); vehiclesEntry != nil {
		for i := range vehiclesEntry.Data {
			if vehiclesEntry.Data[i].TripID == tripID {
				v := vehiclesEntry.Data[i]
				track.Vehicle = &v
				break
			}
		}
	}

	stopNames := map[string]string{}
	if stopsEntry := b.store.GetStops(); stopsEntry != nil {
		for _, s := range stopsEntry.Data {
			stopNames[s.ID] = s.Name
		}
	}

	if predsEntry := b.store.GetPredictions(); predsEntry != nil {
		for _, p := range predsEntry.Data {
			if p.TripID != tripID {
				continue
			}
			t := p.DepartureTime
			if t == nil {
				t = p.ArrivalTime
			}
			track.Upcoming = append(track.Upcoming, TripStopTime{
				StopID:       p.StopID,
				StopName:     stopNames[p.StopID],
				StopSequence: p.StopSequence,
				Time:         t,
				Status:       p.Status,
			})
		}
		sort.SliceStable(track.Upcoming, func(i, j int) bool {
			si, sj := track.Upcoming[i].StopSequence, track.Upcoming[j].StopSequence
			if si == nil || sj == nil {
				return sj == nil && si != nil
			}
			return *si < *sj
		})
	}

	return track, nil
}

func (b *Builder) lookupTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	if tripsEntry := b.store.GetTrips(); tripsEntry != nil {
		for i := range tripsEntry.Data {
			if tripsEntry.Data[i].ID == tripID {
				return &tripsEntry.Data[i], nil
			}
		}
	}
	if b.client == nil {
		return nil, ErrNotFound
	}

	params := url.Values{}
	params.Set("filter[id]", tripID)
	doc, err := b.client.Trips(ctx, params)
	if err != nil {
		return nil, err
	}
	trips, err := models.DecodeTrips(doc)
	if err != nil {
		return nil, err
	}
	for i := range trips {
		if trips[i].ID == tripID {
			return &trips[i], nil
		}
	}
	return nil, ErrNotFound
}

// Stations lists boardable station-level stops, optionally filtered by a
// case-insensitive name fragment.
func (b *Builder) Stations(query string, limit int) ([]models.Stop, error) {
	entry := b.store.GetStops()
	if entry == nil {
		return nil, ErrNotReady
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	out := make([]models.Stop, 0, limit)
	for _, s := range entry.Data {
		if s.LocationType != 1 {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
