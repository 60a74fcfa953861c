// Package cache holds the process-wide store of the latest fetched resource
// collections, optionally mirrored to a remote key-value cache.
package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// Write-through TTLs per resource kind. Static resources get a long TTL so
// a restart can hydrate without an immediate upstream storm.
const (
	TTLPredictions = 60 * time.Second
	TTLVehicles    = 60 * time.Second
	TTLAlerts      = 120 * time.Second
	TTLStatic      = 24 * time.Hour

	// Predictions older than this are reported stale regardless of the
	// per-request lookahead window.
	PredictionsStaleAfter = 90 * time.Second
)

// Entry pairs a resource collection with its fetch timestamp. Every set
// swaps in a brand-new Entry, so readers always see a consistent snapshot.
type Entry[T any] struct {
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// AgeMs returns the entry age in milliseconds at the given instant.
func (e *Entry[T]) AgeMs(now time.Time) int64 {
	return now.Sub(e.FetchedAt).Milliseconds()
}

// Health summarizes cache freshness for the health endpoint.
type Health struct {
	RemoteCacheStatus  string `json:"remoteCacheStatus"`
	PredictionsAgeMs   int64  `json:"predictionsAgeMs"`
	PredictionsIsStale bool   `json:"predictionsIsStale"`
}

// Store is the single shared mutable resource of the process. One logical
// writer per resource kind (the scheduler); many concurrent readers.
type Store struct {
	mu     sync.RWMutex
	remote RemoteCache

	routes      *Entry[[]models.Route]
	lines       *Entry[[]models.Line]
	stops       *Entry[[]models.Stop]
	vehicles    *Entry[[]models.Vehicle]
	predictions *Entry[[]models.Prediction]
	alerts      *Entry[[]models.Alert]
	trips       *Entry[[]models.Trip]
	shapes      *Entry[map[string][]models.Shape]
	stopRoutes  *Entry[map[string][]string]
}

// NewStore builds a Store backed by the given remote cache.
func NewStore(remote RemoteCache) *Store {
	if remote == nil {
		remote = NewNoopCache()
	}
	return &Store{remote: remote}
}

// Hydrate best-effort loads each resource kind from the remote cache.
// Errors are logged and ignored; an empty store is a valid starting state.
func (s *Store) Hydrate(ctx context.Context) {
	if !s.remote.Available() {
		return
	}
	hydrate(ctx, s, keyRoutes, &s.routes)
	hydrate(ctx, s, keyLines, &s.lines)
	hydrate(ctx, s, keyStops, &s.stops)
	hydrate(ctx, s, keyVehicles, &s.vehicles)
	hydrate(ctx, s, keyPredictions, &s.predictions)
	hydrate(ctx, s, keyAlerts, &s.alerts)
	hydrate(ctx, s, keyTrips, &s.trips)
	hydrate(ctx, s, keyShapes, &s.shapes)
	hydrate(ctx, s, keyStopRoutes, &s.stopRoutes)
}

func hydrate[T any](ctx context.Context, s *Store, key string, slot **Entry[T]) {
	var e Entry[T]
	ok, err := s.remote.GetJSON(ctx, key, &e)
	if err != nil {
		log.Printf("Warning: remote cache hydrate %s failed: %v", key, err)
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	if *slot == nil {
		*slot = &e
	}
	s.mu.Unlock()
}

func setEntry[T any](s *Store, key string, slot **Entry[T], data T, ttl time.Duration) {
	e := &Entry[T]{Data: data, FetchedAt: time.Now()}
	s.mu.Lock()
	*slot = e
	s.mu.Unlock()

	// Best-effort write-through; remote failures never reach the caller.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.remote.SetJSON(ctx, key, e, ttl); err != nil {
			log.Printf("Warning: remote cache write %s failed: %v", key, err)
		}
	}()
}

func getEntry[T any](s *Store, slot **Entry[T]) *Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *slot
}

func (s *Store) SetRoutes(data []models.Route) { setEntry(s, keyRoutes, &s.routes, data, TTLStatic) }
func (s *Store) GetRoutes() *Entry[[]models.Route] { return getEntry(s, &s.routes) }

func (s *Store) SetLines(data []models.Line) { setEntry(s, keyLines, &s.lines, data, TTLStatic) }
func (s *Store) GetLines() *Entry[[]models.Line] { return getEntry(s, &s.lines) }

func (s *Store) SetStops(data []models.Stop) { setEntry(s, keyStops, &s.stops, data, TTLStatic) }
func (s *Store) GetStops() *Entry[[]models.Stop] { return getEntry(s, &s.stops) }

func (s *Store) SetVehicles(data []models.Vehicle) {
	setEntry(s, keyVehicles, &s.vehicles, data, TTLVehicles)
}
func (s *Store) GetVehicles() *Entry[[]models.Vehicle] { return getEntry(s, &s.vehicles) }

func (s *Store) SetPredictions(data []models.Prediction) {
	setEntry(s, keyPredictions, &s.predictions, data, TTLPredictions)
}
func (s *Store) GetPredictions() *Entry[[]models.Prediction] { return getEntry(s, &s.predictions) }

func (s *Store) SetAlerts(data []models.Alert) { setEntry(s, keyAlerts, &s.alerts, data, TTLAlerts) }
func (s *Store) GetAlerts() *Entry[[]models.Alert] { return getEntry(s, &s.alerts) }

func (s *Store) SetTrips(data []models.Trip) { setEntry(s, keyTrips, &s.trips, data, TTLStatic) }
func (s *Store) GetTrips() *Entry[[]models.Trip] { return getEntry(s, &s.trips) }

func (s *Store) SetShapes(data map[string][]models.Shape) {
	setEntry(s, keyShapes, &s.shapes, data, TTLStatic)
}
func (s *Store) GetShapes() *Entry[map[string][]models.Shape] { return getEntry(s, &s.shapes) }

// SetStopRoutes stores the stop id -> serving route ids index derived by
// the scheduler's route-by-route stop sweep.
func (s *Store) SetStopRoutes(data map[string][]string) {
	setEntry(s, keyStopRoutes, &s.stopRoutes, data, TTLStatic)
}
func (s *Store) GetStopRoutes() *Entry[map[string][]string] { return getEntry(s, &s.stopRoutes) }

// Remote exposes the remote cache for derived-view caching.
func (s *Store) Remote() RemoteCache { return s.remote }

// Health reports remote cache reachability and prediction freshness.
func (s *Store) Health(ctx context.Context) Health {
	h := Health{RemoteCacheStatus: "disabled", PredictionsAgeMs: -1}
	if s.remote.Available() {
		if err := s.remote.Ping(ctx); err != nil {
			h.RemoteCacheStatus = "error: " + err.Error()
		} else {
			h.RemoteCacheStatus = "ok"
		}
	}
	if e := s.GetPredictions(); e != nil {
		now := time.Now()
		h.PredictionsAgeMs = e.AgeMs(now)
		h.PredictionsIsStale = now.Sub(e.FetchedAt) > PredictionsStaleAfter
	} else {
		h.PredictionsIsStale = true
	}
	return h
}
