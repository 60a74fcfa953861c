package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/eta"
	"github.com/transitpulse/transitpulse_core/internal/models"
)

const (
	testLat = 42.3601
	testLng = -71.0589
)

// fakeSnapshots serves canned snapshots per stop and counts calls so cache
// behavior is observable.
type fakeSnapshots struct {
	mu          sync.Mutex
	cached      map[string]*models.Snapshot
	live        map[string]*models.Snapshot
	failing     map[string]bool
	cachedCalls int
	liveCalls   int
}

func (f *fakeSnapshots) CachedStopSnapshot(stopID string, _ eta.Options) *models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cachedCalls++
	return f.cached[stopID]
}

func (f *fakeSnapshots) StopSnapshot(_ context.Context, stopID string, _ eta.Options) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveCalls++
	if f.failing[stopID] {
		return nil, errors.New("upstream unavailable")
	}
	if snap, ok := f.live[stopID]; ok {
		return snap, nil
	}
	return &models.Snapshot{StopID: stopID}, nil
}

func (f *fakeSnapshots) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cachedCalls + f.liveCalls
}

func departureAt(routeID string, direction int, min int, headsign string) models.BlendedDeparture {
	t := time.Now().Add(time.Duration(min) * time.Minute)
	return models.BlendedDeparture{
		RouteID:     routeID,
		DirectionID: models.IntPtr(direction),
		TripID:      "trip-" + routeID,
		Headsign:    headsign,
		FinalTime:   &t,
		EtaMinutes:  models.IntPtr(min),
		EtaSource:   models.SourcePrediction,
		Status:      models.StatusOnTime,
	}
}

func stationFixture() []models.Stop {
	return []models.Stop{
		{ID: "sta-central", Name: "Central", Lat: testLat, Lng: testLng, LocationType: 1},
		{ID: "plat-north", Name: "Central North", Lat: testLat, Lng: testLng, LocationType: 0, ParentStationID: "sta-central"},
		{ID: "plat-south", Name: "Central South", Lat: testLat, Lng: testLng, LocationType: 0, ParentStationID: "sta-central"},
		{ID: "sta-far", Name: "Far Away", Lat: testLat + 1, Lng: testLng, LocationType: 1},
	}
}

func newTestService(stops []models.Stop, snapshots SnapshotProvider) *Service {
	store := cache.NewStore(nil)
	if stops != nil {
		store.SetStops(stops)
	}
	return NewService(store, snapshots)
}

func TestQuantizeHomeKey(t *testing.T) {
	base := HomeQuery{Lat: 42.3601, Lng: -71.0589, RadiusM: 800, Limit: 6}

	t.Run("nearby coordinates share a key", func(t *testing.T) {
		moved := base
		moved.Lat = 42.3644 // rounds to the same 0.01 degree bucket
		assert.Equal(t, QuantizeHomeKey(base), QuantizeHomeKey(moved))
	})

	t.Run("distant coordinates differ", func(t *testing.T) {
		moved := base
		moved.Lat = 42.42
		assert.NotEqual(t, QuantizeHomeKey(base), QuantizeHomeKey(moved))
	})

	t.Run("radius within the same bucket shares a key", func(t *testing.T) {
		wider := base
		wider.RadiusM = 870 // both round to 750..875 bucket boundaries aside, same 250m step
		assert.Equal(t, QuantizeHomeKey(base), QuantizeHomeKey(wider))
	})

	t.Run("radius in a different bucket differs", func(t *testing.T) {
		wider := base
		wider.RadiusM = 1600
		assert.NotEqual(t, QuantizeHomeKey(base), QuantizeHomeKey(wider))
	})

	t.Run("favorite order does not matter", func(t *testing.T) {
		a := base
		a.FavoriteStopIDs = []string{"s1", "s2"}
		b := base
		b.FavoriteStopIDs = []string{"s2", "s1"}
		assert.Equal(t, QuantizeHomeKey(a), QuantizeHomeKey(b))
	})

	t.Run("different favorites differ", func(t *testing.T) {
		a := base
		a.FavoriteStopIDs = []string{"s1"}
		assert.NotEqual(t, QuantizeHomeKey(base), QuantizeHomeKey(a))
	})
}

func TestHomeSnapshotNotReady(t *testing.T) {
	svc := newTestService(nil, &fakeSnapshots{})
	_, err := svc.HomeSnapshot(context.Background(), HomeQuery{Lat: testLat, Lng: testLng})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestHomeSnapshotGroupsPlatforms(t *testing.T) {
	snapshots := &fakeSnapshots{
		live: map[string]*models.Snapshot{
			"plat-north": {StopID: "plat-north", Departures: []models.BlendedDeparture{
				departureAt("Red", 0, 5, "Alewife"),
			}},
			"plat-south": {StopID: "plat-south", Departures: []models.BlendedDeparture{
				departureAt("Red", 0, 8, "Alewife"),
				departureAt("Red", 1, 6, "Ashmont"),
			}},
		},
	}
	svc := newTestService(stationFixture(), snapshots)

	snap, err := svc.HomeSnapshot(context.Background(), HomeQuery{Lat: testLat, Lng: testLng})
	require.NoError(t, err)
	require.Len(t, snap.Nearby, 1, "sibling platforms collapse into one station")

	station := snap.Nearby[0]
	assert.Equal(t, "sta-central", station.StationID)
	assert.Contains(t, station.PlatformStopIDs, "plat-north")
	assert.Contains(t, station.PlatformStopIDs, "plat-south")
	require.NotNil(t, station.DistanceM)

	require.Len(t, station.Groups, 2, "one group per route and direction")
	inbound := station.Groups[0]
	assert.Equal(t, "Red", inbound.RouteID)
	assert.Equal(t, "Inbound", inbound.Direction)
	assert.Equal(t, "Alewife", inbound.Destination)
	require.Len(t, inbound.Times, 2, "times from both platforms merge into the group")
	assert.True(t, inbound.Times[0].Time.Before(inbound.Times[1].Time))

	outbound := station.Groups[1]
	assert.Equal(t, "Outbound", outbound.Direction)
	assert.Equal(t, "Ashmont", outbound.Destination)
}

func TestHomeSnapshotServesRepeatQueriesFromCache(t *testing.T) {
	snapshots := &fakeSnapshots{}
	svc := newTestService(stationFixture(), snapshots)
	query := HomeQuery{Lat: testLat, Lng: testLng}

	_, err := svc.HomeSnapshot(context.Background(), query)
	require.NoError(t, err)
	callsAfterFirst := snapshots.totalCalls()
	require.Greater(t, callsAfterFirst, 0)

	// A slightly moved query quantizes onto the same key.
	moved := query
	moved.Lat += 0.003
	_, err = svc.HomeSnapshot(context.Background(), moved)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, snapshots.totalCalls(),
		"second query is served from the view cache")
}

func TestHomeSnapshotFavorites(t *testing.T) {
	snapshots := &fakeSnapshots{}
	svc := newTestService(stationFixture(), snapshots)

	snap, err := svc.HomeSnapshot(context.Background(), HomeQuery{
		Lat:             testLat,
		Lng:             testLng,
		FavoriteStopIDs: []string{"sta-far", "plat-north", "missing-stop"},
	})
	require.NoError(t, err)

	require.Len(t, snap.Favorites, 2, "unknown favorite ids are skipped")
	assert.Equal(t, "sta-far", snap.Favorites[0].StationID, "caller order is preserved")
	assert.Equal(t, "sta-central", snap.Favorites[1].StationID,
		"favorite platform rolls up to its station")
	assert.Nil(t, snap.Favorites[0].DistanceM, "favorites carry no distance")
}

func TestHomeSnapshotIsolatesFailedPlatform(t *testing.T) {
	snapshots := &fakeSnapshots{
		failing: map[string]bool{"plat-north": true},
		live: map[string]*models.Snapshot{
			"plat-south": {StopID: "plat-south", Departures: []models.BlendedDeparture{
				departureAt("Red", 0, 4, "Alewife"),
			}},
		},
	}
	svc := newTestService(stationFixture(), snapshots)

	snap, err := svc.HomeSnapshot(context.Background(), HomeQuery{Lat: testLat, Lng: testLng})
	require.NoError(t, err, "one failed platform must not fail the view")
	require.Len(t, snap.Nearby, 1)
	require.Len(t, snap.Nearby[0].Groups, 1, "surviving platform still contributes")
}

func TestStationBoard(t *testing.T) {
	snapshots := &fakeSnapshots{
		live: map[string]*models.Snapshot{
			"plat-north": {StopID: "plat-north", Departures: []models.BlendedDeparture{
				departureAt("Red", 0, 12, "Alewife"),
			}},
			"plat-south": {StopID: "plat-south", Departures: []models.BlendedDeparture{
				departureAt("Red", 0, 3, "Alewife"),
			}},
		},
	}
	svc := newTestService(stationFixture(), snapshots)

	t.Run("platform id resolves to the full station board", func(t *testing.T) {
		board, err := svc.StationBoard(context.Background(), "plat-south")
		require.NoError(t, err)
		assert.Equal(t, "sta-central", board.Primary.StationID)
		assert.ElementsMatch(t, []string{"sta-central", "plat-north", "plat-south"},
			board.Primary.PlatformStopIDs)

		require.Len(t, board.Details, 2)
		assert.True(t, board.Details[0].FinalTime.Before(*board.Details[1].FinalTime),
			"detail rows ascend by final time")
	})

	t.Run("unknown stop", func(t *testing.T) {
		_, err := svc.StationBoard(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrStopNotFound)
	})

	t.Run("empty store", func(t *testing.T) {
		empty := newTestService(nil, snapshots)
		_, err := empty.StationBoard(context.Background(), "plat-south")
		assert.ErrorIs(t, err, ErrNotReady)
	})
}

func TestGroupDeparturesCapsTimes(t *testing.T) {
	var rows []models.BlendedDeparture
	for i := 5; i >= 1; i-- {
		rows = append(rows, departureAt("Blue", 0, i*2, "Wonderland"))
	}

	groups := groupDepartures(rows)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Times, 3, "each group keeps only the next few times")
	assert.Equal(t, 2, groups[0].Times[0].EtaMinutes, "earliest time first")
}

func TestDirectionLabel(t *testing.T) {
	assert.Equal(t, "Inbound", directionLabel(models.IntPtr(0)))
	assert.Equal(t, "Outbound", directionLabel(models.IntPtr(1)))
	assert.Equal(t, "Unknown", directionLabel(models.IntPtr(7)))
	assert.Equal(t, "Unknown", directionLabel(nil))
}
