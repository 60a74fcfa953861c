// Package aggregate groups platform-level stops into rider-facing boardable
// stations and merges their departure snapshots into the home and station
// board views.
package aggregate

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/eta"
	"github.com/transitpulse/transitpulse_core/internal/geo"
	"github.com/transitpulse/transitpulse_core/internal/models"
	"github.com/transitpulse/transitpulse_core/internal/topology"
)

var (
	// ErrNotReady means the stop cache has not been populated yet.
	ErrNotReady = errors.New("stop data not ready")
	// ErrStopNotFound means the requested stop id resolves to nothing boardable.
	ErrStopNotFound = errors.New("stop not found")
)

const (
	defaultRadiusM = 800
	maxRadiusM     = 5000
	minRadiusM     = 100
	defaultLimit   = 6
	maxLimit       = 12

	timesPerGroup = 3

	boardLookaheadMinutes = 60
	boardMaxDetails       = 60
	boardMaxPerDirection  = 6
)

// SnapshotProvider abstracts the ETA snapshot service for testability.
type SnapshotProvider interface {
	CachedStopSnapshot(stopID string, opts eta.Options) *models.Snapshot
	StopSnapshot(ctx context.Context, stopID string, opts eta.Options) (*models.Snapshot, error)
}

// Service builds the home snapshot and station board views.
type Service struct {
	store     *cache.Store
	snapshots SnapshotProvider
	views     *viewCache
}

// NewService wires the aggregation service.
func NewService(store *cache.Store, snapshots SnapshotProvider) *Service {
	return &Service{
		store:     store,
		snapshots: snapshots,
		views:     newViewCache(store.Remote()),
	}
}

func (q HomeQuery) clamped() HomeQuery {
	if q.RadiusM <= 0 {
		q.RadiusM = defaultRadiusM
	}
	if q.RadiusM < minRadiusM {
		q.RadiusM = minRadiusM
	}
	if q.RadiusM > maxRadiusM {
		q.RadiusM = maxRadiusM
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

// HomeSnapshot assembles the rider-facing home view: nearby boardable
// stations within the radius plus the caller's favorites, each with merged
// per-route/direction departures.
func (s *Service) HomeSnapshot(ctx context.Context, query HomeQuery) (*HomeSnapshot, error) {
	query = query.clamped()
	key := QuantizeHomeKey(query)
	if cached := s.views.get(ctx, key); cached != nil {
		return cached, nil
	}

	stopsEntry := s.store.GetStops()
	if stopsEntry == nil {
		return nil, ErrNotReady
	}
	stops := stopsEntry.Data
	index := stopIndex(stops)
	byParent := parentIndex(stops)

	candidates := s.selectCandidates(stops, query)

	// Grouping may collapse several platforms into one station, so keep a
	// deep candidate pool before truncating.
	if len(candidates) > query.Limit*4 {
		candidates = candidates[:query.Limit*4]
	}

	nearby := newGrouper(index, byParent)
	for _, c := range candidates {
		nearby.add(c.stop, &c.distanceM)
	}
	nearbyGroups := nearby.ordered()
	if len(nearbyGroups) > query.Limit {
		nearbyGroups = nearbyGroups[:query.Limit]
	}

	// Favorites are resolved independently, keep caller order, no radius
	// or limit applied.
	favorites := newGrouper(index, byParent)
	for _, id := range query.FavoriteStopIDs {
		stop, ok := index[id]
		if !ok {
			continue
		}
		favorites.add(stop, nil)
	}
	favoriteGroups := favorites.ordered()

	platformIDs := unionPlatformIDs(nearbyGroups, favoriteGroups)
	departures := s.fetchDepartures(ctx, platformIDs, eta.Options{})

	snap := &HomeSnapshot{
		Favorites:   buildEntries(favoriteGroups, departures),
		Nearby:      buildEntries(nearbyGroups, departures),
		GeneratedAt: time.Now(),
	}
	s.views.set(key, snap)
	return snap, nil
}

// StationBoard builds the single-station detail view for a requested stop,
// scoped to its boardable parent and sibling platforms, with a wider
// lookahead and bounded detail rows.
func (s *Service) StationBoard(ctx context.Context, stopID string) (*StationBoard, error) {
	stopsEntry := s.store.GetStops()
	if stopsEntry == nil {
		return nil, ErrNotReady
	}
	stops := stopsEntry.Data
	index := stopIndex(stops)

	stop, ok := index[stopID]
	if !ok {
		return nil, ErrStopNotFound
	}
	parent := topology.ResolveBoardableParent(stop, index)
	if parent == nil {
		return nil, ErrStopNotFound
	}

	platformIDs := topology.SiblingPlatforms(*parent, stops)
	opts := eta.Options{MaxLookaheadMinutes: boardLookaheadMinutes}
	departures := s.fetchDepartures(ctx, platformIDs, opts)

	var all []models.BlendedDeparture
	for _, id := range platformIDs {
		all = append(all, departures[id]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].FinalTime.Before(*all[j].FinalTime)
	})

	primary := StationEntry{
		StationID:       parent.ID,
		Name:            parent.Name,
		Lat:             parent.Lat,
		Lng:             parent.Lng,
		PlatformStopIDs: platformIDs,
		Groups:          groupDepartures(all),
	}

	return &StationBoard{
		Primary:     primary,
		Details:     capDetails(all),
		GeneratedAt: time.Now(),
	}, nil
}

type candidate struct {
	stop      models.Stop
	distanceM float64
}

// selectCandidates picks stops inside the radius, pre-filtered to stops
// with at least one serving route when the route index is available,
// ordered by distance.
func (s *Service) selectCandidates(stops []models.Stop, query HomeQuery) []candidate {
	var stopRoutes map[string][]string
	if e := s.store.GetStopRoutes(); e != nil {
		stopRoutes = e.Data
	}

	out := make([]candidate, 0, 32)
	for _, stop := range stops {
		d := geo.HaversineMeters(query.Lat, query.Lng, stop.Lat, stop.Lng)
		if d > float64(query.RadiusM) {
			continue
		}
		if stopRoutes != nil && !servesAnyRoute(stop, stopRoutes) {
			continue
		}
		out = append(out, candidate{stop: stop, distanceM: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].distanceM < out[j].distanceM })
	return out
}

func servesAnyRoute(stop models.Stop, stopRoutes map[string][]string) bool {
	if len(stopRoutes[stop.ID]) > 0 {
		return true
	}
	if stop.ParentStationID != "" && len(stopRoutes[stop.ParentStationID]) > 0 {
		return true
	}
	return false
}

// grouper merges stops into StationGroups keyed by canonical station id,
// remembering first-seen order.
type grouper struct {
	index    map[string]models.Stop
	byParent map[string][]string
	groups   map[string]*models.StationGroup
	order    []string
}

func newGrouper(index map[string]models.Stop, byParent map[string][]string) *grouper {
	return &grouper{
		index:    index,
		byParent: byParent,
		groups:   make(map[string]*models.StationGroup),
	}
}

func (g *grouper) add(stop models.Stop, distanceM *float64) {
	parent := topology.ResolveBoardableParent(stop, g.index)
	if parent == nil {
		return
	}

	group, ok := g.groups[parent.ID]
	if !ok {
		group = &models.StationGroup{Station: *parent, MinDistanceM: -1}
		// Platform ids start with the canonical station and every sibling
		// platform sharing the parent.
		group.PlatformStopIDs = append([]string{parent.ID}, g.byParent[parent.ID]...)
		g.groups[parent.ID] = group
		g.order = append(g.order, parent.ID)
	}
	if !contains(group.PlatformStopIDs, stop.ID) {
		group.PlatformStopIDs = append(group.PlatformStopIDs, stop.ID)
	}
	if distanceM != nil && (group.MinDistanceM < 0 || *distanceM < group.MinDistanceM) {
		group.MinDistanceM = *distanceM
	}
}

// ordered returns groups sorted by minimum observed distance; groups with
// no distance (favorites) keep insertion order at the front of ties.
func (g *grouper) ordered() []*models.StationGroup {
	out := make([]*models.StationGroup, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.groups[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].MinDistanceM, out[j].MinDistanceM
		if di < 0 || dj < 0 {
			return false
		}
		return di < dj
	})
	return out
}

func stopIndex(stops []models.Stop) map[string]models.Stop {
	out := make(map[string]models.Stop, len(stops))
	for _, s := range stops {
		out[s.ID] = s
	}
	return out
}

func parentIndex(stops []models.Stop) map[string][]string {
	out := make(map[string][]string)
	for _, s := range stops {
		if s.ParentStationID != "" {
			out[s.ParentStationID] = append(out[s.ParentStationID], s.ID)
		}
	}
	return out
}

func unionPlatformIDs(groupLists ...[]*models.StationGroup) []string {
	seen := map[string]bool{}
	var out []string
	for _, groups := range groupLists {
		for _, g := range groups {
			for _, id := range g.PlatformStopIDs {
				if !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// fetchDepartures gets a snapshot per platform, cached-first with a live
// fallback, fanned out concurrently. A failed platform contributes zero
// departures instead of failing the request.
func (s *Service) fetchDepartures(ctx context.Context, platformIDs []string, opts eta.Options) map[string][]models.BlendedDeparture {
	type result struct {
		stopID     string
		departures []models.BlendedDeparture
	}

	resultChan := make(chan result, len(platformIDs))
	var wg sync.WaitGroup
	for _, id := range platformIDs {
		wg.Add(1)
		go func(stopID string) {
			defer wg.Done()
			if snap := s.snapshots.CachedStopSnapshot(stopID, opts); snap != nil {
				resultChan <- result{stopID: stopID, departures: snap.Departures}
				return
			}
			snap, err := s.snapshots.StopSnapshot(ctx, stopID, opts)
			if err != nil {
				log.Printf("ETA fetch failed for stop %s: %v", stopID, err)
				resultChan <- result{stopID: stopID}
				return
			}
			resultChan <- result{stopID: stopID, departures: snap.Departures}
		}(id)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	out := make(map[string][]models.BlendedDeparture, len(platformIDs))
	for r := range resultChan {
		out[r.stopID] = r.departures
	}
	return out
}

func buildEntries(groups []*models.StationGroup, departures map[string][]models.BlendedDeparture) []StationEntry {
	entries := make([]StationEntry, 0, len(groups))
	for _, g := range groups {
		var all []models.BlendedDeparture
		for _, id := range g.PlatformStopIDs {
			all = append(all, departures[id]...)
		}
		entry := StationEntry{
			StationID:       g.Station.ID,
			Name:            g.Station.Name,
			Lat:             g.Station.Lat,
			Lng:             g.Station.Lng,
			PlatformStopIDs: g.PlatformStopIDs,
			Groups:          groupDepartures(all),
		}
		if g.MinDistanceM >= 0 {
			d := g.MinDistanceM
			entry.DistanceM = &d
		}
		entries = append(entries, entry)
	}
	return entries
}

// groupDepartures merges a station's departures by (route, direction),
// keeping the next few times per group ascending by ETA.
func groupDepartures(departures []models.BlendedDeparture) []DepartureGroup {
	type groupKey struct {
		routeID   string
		direction int // -1 for unknown
	}

	groups := make(map[groupKey]*DepartureGroup)
	var order []groupKey
	for _, d := range departures {
		if d.FinalTime == nil {
			continue
		}
		key := groupKey{routeID: d.RouteID, direction: -1}
		if d.DirectionID != nil {
			key.direction = *d.DirectionID
		}
		g, ok := groups[key]
		if !ok {
			g = &DepartureGroup{
				RouteID:     d.RouteID,
				DirectionID: d.DirectionID,
				Direction:   directionLabel(d.DirectionID),
			}
			groups[key] = g
			order = append(order, key)
		}
		// Destination prefers the departure's own headsign, else any
		// sibling's in the same group.
		if g.Destination == "" && d.Headsign != "" {
			g.Destination = d.Headsign
		}
		etaMin := 0
		if d.EtaMinutes != nil {
			etaMin = *d.EtaMinutes
		}
		g.Times = append(g.Times, DepartureTime{
			Time:       *d.FinalTime,
			EtaMinutes: etaMin,
			EtaSource:  d.EtaSource,
			Status:     d.Status,
			TripID:     d.TripID,
		})
	}

	out := make([]DepartureGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		sort.SliceStable(g.Times, func(i, j int) bool {
			return g.Times[i].Time.Before(g.Times[j].Time)
		})
		if len(g.Times) > timesPerGroup {
			g.Times = g.Times[:timesPerGroup]
		}
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Times) == 0 || len(out[j].Times) == 0 {
			return len(out[j].Times) == 0 && len(out[i].Times) > 0
		}
		return out[i].Times[0].Time.Before(out[j].Times[0].Time)
	})
	return out
}

func directionLabel(directionID *int) string {
	if directionID == nil {
		return "Unknown"
	}
	switch *directionID {
	case 0:
		return "Inbound"
	case 1:
		return "Outbound"
	default:
		return "Unknown"
	}
}

// capDetails bounds the board's detail rows: at most boardMaxPerDirection
// per (route, direction) and boardMaxDetails overall.
func capDetails(departures []models.BlendedDeparture) []models.BlendedDeparture {
	type groupKey struct {
		routeID   string
		direction int
	}
	counts := make(map[groupKey]int)
	out := make([]models.BlendedDeparture, 0, boardMaxDetails)
	for _, d := range departures {
		if len(out) >= boardMaxDetails {
			break
		}
		key := groupKey{routeID: d.RouteID, direction: -1}
		if d.DirectionID != nil {
			key.direction = *d.DirectionID
		}
		if counts[key] >= boardMaxPerDirection {
			continue
		}
		counts[key]++
		out = append(out, d)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
