// Package views builds read-only projections over the resource cache:
// line overviews, system insights, vehicle snapshots and trip tracking.
package views

import (
	"errors"

	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/models"
	"github.com/transitpulse/transitpulse_core/internal/upstream"
)

var (
	// ErrNotReady means a required resource collection is not cached yet.
	ErrNotReady = errors.New("resource data not ready")
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
)

// Builder produces the derived views.
type Builder struct {
	store  *cache.Store
	client *upstream.Client
}

// NewBuilder wires a Builder. The upstream client is only used as a
// fallback for trip lookups missing from the cache.
func NewBuilder(store *cache.Store, client *upstream.Client) *Builder {
	return &Builder{store: store, client: client}
}

func (b *Builder) routesByLine() (map[string][]models.Route, []models.Route, error) {
	entry := b.store.GetRoutes()
	if entry == nil {
		return nil, nil, ErrNotReady
	}
	byLine := make(map[string][]models.Route)
	for _, r := range entry.Data {
		if r.LineID != "" {
			byLine[r.LineID] = append(byLine[r.LineID], r)
		}
	}
	return byLine, entry.Data, nil
}

func (b *Builder) vehiclesByRoute() map[string][]models.Vehicle {
	entry := b.store.GetVehicles()
	if entry == nil {
		return nil
	}
	out := make(map[string][]models.Vehicle)
	for _, v := range entry.Data {
		if v.RouteID != "" {
			out[v.RouteID] = append(out[v.RouteID], v)
		}
	}
	return out
}

func (b *Builder) alertsByRoute() map[string][]models.Alert {
	entry := b.store.GetAlerts()
	if entry == nil {
		return nil
	}
	out := make(map[string][]models.Alert)
	for _, a := range entry.Data {
		for _, routeID := range a.InformedRouteIDs {
			out[routeID] = append(out[routeID], a)
		}
	}
	return out
}

func (b *Builder) predictionsByRoute() map[string][]models.Prediction {
	entry := b.store.GetPredictions()
	if entry == nil {
		return nil
	}
	out := make(map[string][]models.Prediction)
	for _, p := range entry.Data {
		if p.RouteID != "" {
			out[p.RouteID] = append(out[p.RouteID], p)
		}
	}
	return out
}
