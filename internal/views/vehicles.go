package views

import (
	"sort"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// VehicleSnapshot is one vehicle joined with its route for display.
type VehicleSnapshot struct {
	Vehicle   models.Vehicle `json:"vehicle"`
	RouteName string         `json:"routeName,omitempty"`
	RouteType int            `json:"routeType"`
	Color     string         `json:"color,omitempty"`
}

// VehicleSnapshotsView is the map-facing list of live vehicles.
type VehicleSnapshotsView struct {
	Vehicles  []VehicleSnapshot `json:"vehicles"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// Vehicles joins cached vehicles with their routes. Vehicles on unknown
// routes are still listed, just without route metadata.
func (b *Builder) Vehicles(routeFilter string) (*VehicleSnapshotsView, error) {
	entry := b.store.GetVehicles()
	if entry == nil {
		return nil, ErrNotReady
	}

	routeByID := map[string]models.Route{}
	if routesEntry := b.store.GetRoutes(); routesEntry != nil {
		for _, r := range routesEntry.Data {
			routeByID[r.ID] = r
		}
	}

	out := make([]VehicleSnapshot, 0, len(entry.Data))
	for _, v := range entry.Data {
		if routeFilter != "" && v.RouteID != routeFilter {
			continue
		}
		snap := VehicleSnapshot{Vehicle: v}
		if r, ok := routeByID[v.RouteID]; ok {
			name := r.ShortName
			if name == "" {
				name = r.LongName
			}
			snap.RouteName = name
			snap.RouteType = r.Type
			snap.Color = r.Color
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Vehicle.ID < out[j].Vehicle.ID })

	return &VehicleSnapshotsView{Vehicles: out, FetchedAt: entry.FetchedAt}, nil
}
