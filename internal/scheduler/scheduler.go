// Package scheduler runs the fixed-interval jobs that refresh the resource
// cache from the upstream provider. Jobs are independent of one another;
// a failed run is retried by rescheduling at a shorter interval.
package scheduler

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/models"
	"github.com/transitpulse/transitpulse_core/internal/upstream"
)

// Intervals configures the per-resource refresh cadence.
type Intervals struct {
	Vehicles    time.Duration
	Predictions time.Duration
	Alerts      time.Duration
	Static      time.Duration
	ChunkDelay  time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Vehicles == 0 {
		iv.Vehicles = 15 * time.Second
	}
	if iv.Predictions == 0 {
		iv.Predictions = 30 * time.Second
	}
	if iv.Alerts == 0 {
		iv.Alerts = time.Minute
	}
	if iv.Static == 0 {
		iv.Static = 6 * time.Hour
	}
	if iv.ChunkDelay == 0 {
		iv.ChunkDelay = 200 * time.Millisecond
	}
	return iv
}

const routeChunkSize = 6

// Scheduler owns the polling jobs.
type Scheduler struct {
	client    *upstream.Client
	store     *cache.Store
	intervals Intervals
}

// New builds a Scheduler.
func New(client *upstream.Client, store *cache.Store, intervals Intervals) *Scheduler {
	return &Scheduler{client: client, store: store, intervals: intervals.withDefaults()}
}

// Start launches one goroutine per resource job. Jobs stop when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	iv := s.intervals
	go s.runJob(ctx, "routes+lines", iv.Static, s.refreshRoutesAndLines)
	go s.runJob(ctx, "stops", iv.Static, s.refreshStops)
	go s.runJob(ctx, "trips", iv.Static, s.refreshTrips)
	go s.runJob(ctx, "shapes", iv.Static, s.refreshShapes)
	go s.runJob(ctx, "vehicles", iv.Vehicles, s.refreshVehicles)
	go s.runJob(ctx, "predictions", iv.Predictions, s.refreshPredictions)
	go s.runJob(ctx, "alerts", iv.Alerts, s.refreshAlerts)
}

// runJob runs fn immediately, then on its interval. On failure the next
// run is rescheduled sooner instead of waiting the full interval.
func (s *Scheduler) runJob(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	delay := time.Duration(0)
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Printf("Job %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
			delay = retryDelay(interval)
			continue
		}
		log.Printf("Job %s completed in %s", name, time.Since(start).Round(time.Millisecond))
		delay = interval
	}
}

func retryDelay(interval time.Duration) time.Duration {
	d := interval / 2
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

func (s *Scheduler) refreshRoutesAndLines(ctx context.Context) error {
	params := url.Values{}
	params.Set("include", "line")
	doc, err := s.client.Routes(ctx, params)
	if err != nil {
		return err
	}
	routes, err := models.DecodeRoutes(doc)
	if err != nil {
		return err
	}
	s.store.SetRoutes(routes)

	linesDoc, err := s.client.Lines(ctx, nil)
	if err != nil {
		return err
	}
	lines, err := models.DecodeLines(linesDoc)
	if err != nil {
		return err
	}
	s.store.SetLines(lines)
	return nil
}

// refreshStops sweeps stops route by route so the stop -> serving-routes
// index can be derived in the same pass, then merges in the parent
// stations. Sub-fetches are spaced to stay friendly to the rate limiter.
func (s *Scheduler) refreshStops(ctx context.Context) error {
	routesEntry := s.store.GetRoutes()
	if routesEntry == nil {
		// Routes have not been polled yet; reschedule will retry.
		return errNoRoutes
	}

	stopsByID := make(map[string]models.Stop)
	var order []string
	stopRoutes := make(map[string][]string)

	for _, route := range routesEntry.Data {
		params := url.Values{}
		params.Set("filter[route]", route.ID)
		doc, err := s.client.Stops(ctx, params)
		if err != nil {
			return err
		}
		stops, err := models.DecodeStops(doc)
		if err != nil {
			return err
		}
		for _, stop := range stops {
			if _, seen := stopsByID[stop.ID]; !seen {
				stopsByID[stop.ID] = stop
				order = append(order, stop.ID)
			}
			stopRoutes[stop.ID] = append(stopRoutes[stop.ID], route.ID)
		}
		if err := pause(ctx, s.intervals.ChunkDelay); err != nil {
			return err
		}
	}

	// Parent stations are not always returned by the per-route sweep.
	params := url.Values{}
	params.Set("filter[location_type]", "1")
	doc, err := s.client.Stops(ctx, params)
	if err != nil {
		return err
	}
	stations, err := models.DecodeStops(doc)
	if err != nil {
		return err
	}
	for _, station := range stations {
		if _, seen := stopsByID[station.ID]; !seen {
			stopsByID[station.ID] = station
			order = append(order, station.ID)
		}
	}

	all := make([]models.Stop, 0, len(order))
	for _, id := range order {
		all = append(all, stopsByID[id])
	}
	s.store.SetStops(all)
	s.store.SetStopRoutes(stopRoutes)
	return nil
}

func (s *Scheduler) refreshTrips(ctx context.Context) error {
	routesEntry := s.store.GetRoutes()
	if routesEntry == nil {
		return errNoRoutes
	}

	var all []models.Trip
	for _, chunk := range routeChunks(routesEntry.Data) {
		params := url.Values{}
		params.Set("filter[route]", chunk)
		doc, err := s.client.Trips(ctx, params)
		if err != nil {
			return err
		}
		trips, err := models.DecodeTrips(doc)
		if err != nil {
			return err
		}
		all = append(all, trips...)
		if err := pause(ctx, s.intervals.ChunkDelay); err != nil {
			return err
		}
	}
	s.store.SetTrips(all)
	return nil
}

func (s *Scheduler) refreshShapes(ctx context.Context) error {
	routesEntry := s.store.GetRoutes()
	if routesEntry == nil {
		return errNoRoutes
	}

	byRoute := make(map[string][]models.Shape, len(routesEntry.Data))
	for _, route := range routesEntry.Data {
		params := url.Values{}
		params.Set("filter[route]", route.ID)
		doc, err := s.client.Shapes(ctx, params)
		if err != nil {
			return err
		}
		shapes, err := models.DecodeShapes(doc)
		if err != nil {
			return err
		}
		byRoute[route.ID] = shapes
		if err := pause(ctx, s.intervals.ChunkDelay); err != nil {
			return err
		}
	}
	s.store.SetShapes(byRoute)
	return nil
}

func (s *Scheduler) refreshVehicles(ctx context.Context) error {
	doc, err := s.client.Vehicles(ctx, nil)
	if err != nil {
		return err
	}
	vehicles, err := models.DecodeVehicles(doc)
	if err != nil {
		return err
	}
	s.store.SetVehicles(vehicles)
	return nil
}

// refreshPredictions polls route by route (chunked) and publishes the whole
// pool in one set, so readers never observe a partially refreshed pool.
func (s *Scheduler) refreshPredictions(ctx context.Context) error {
	routesEntry := s.store.GetRoutes()
	if routesEntry == nil {
		return errNoRoutes
	}

	var all []models.Prediction
	for _, chunk := range routeChunks(routesEntry.Data) {
		params := url.Values{}
		params.Set("filter[route]", chunk)
		doc, err := s.client.Predictions(ctx, params)
		if err != nil {
			return err
		}
		preds, err := models.DecodePredictions(doc)
		if err != nil {
			return err
		}
		all = append(all, preds...)
		if err := pause(ctx, s.intervals.ChunkDelay); err != nil {
			return err
		}
	}
	s.store.SetPredictions(all)
	return nil
}

func (s *Scheduler) refreshAlerts(ctx context.Context) error {
	doc, err := s.client.Alerts(ctx, nil)
	if err != nil {
		return err
	}
	alerts, err := models.DecodeAlerts(doc)
	if err != nil {
		return err
	}
	s.store.SetAlerts(alerts)
	return nil
}

// routeChunks joins route ids into comma-separated filter values.
func routeChunks(routes []models.Route) []string {
	var chunks []string
	for i := 0; i < len(routes); i += routeChunkSize {
		end := i + routeChunkSize
		if end > len(routes) {
			end = len(routes)
		}
		ids := make([]string, 0, end-i)
		for _, r := range routes[i:end] {
			ids = append(ids, r.ID)
		}
		chunks = append(chunks, strings.Join(ids, ","))
	}
	return chunks
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
