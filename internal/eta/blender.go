// Package eta reconciles scheduled departures with live predictions into a
// single ranked, deduplicated departure list per stop, and fills gaps in
// partial real-time coverage by interpolating along stop-sequence order.
package eta

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// Provider fetches the two departure sources for one stop.
type Provider interface {
	SchedulesForStop(ctx context.Context, stopID string, from, to time.Time) ([]models.Schedule, error)
	PredictionsForStop(ctx context.Context, stopID string) ([]models.Prediction, error)
}

// Options controls one blended-departure request.
type Options struct {
	Now                 time.Time
	WindowMinutes       int
	MinLookaheadMinutes int
	MaxLookaheadMinutes int
	MaxResults          int
	StopName            string
}

func (o Options) normalized() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.WindowMinutes == 0 {
		o.WindowMinutes = 90
	}
	if o.MinLookaheadMinutes == 0 {
		o.MinLookaheadMinutes = -2
	}
	if o.MaxLookaheadMinutes == 0 {
		o.MaxLookaheadMinutes = 30
	}
	if o.MaxResults == 0 {
		o.MaxResults = 200
	}
	return o
}

func (o Options) window() (time.Time, time.Time) {
	return o.Now.Add(time.Duration(o.MinLookaheadMinutes) * time.Minute),
		o.Now.Add(time.Duration(o.MaxLookaheadMinutes) * time.Minute)
}

// Blender fetches and reconciles the two sources for a stop.
type Blender struct {
	provider Provider
}

// NewBlender builds a Blender on top of the given provider.
func NewBlender(p Provider) *Blender {
	return &Blender{provider: p}
}

// FetchBlendedDepartures returns the stop's departures within the lookahead
// window, ascending by final time. If either upstream fetch fails the whole
// call fails; fallback policy belongs to the caller.
func (b *Blender) FetchBlendedDepartures(ctx context.Context, stopID string, opts Options) ([]models.BlendedDeparture, error) {
	opts = opts.normalized()
	rows, err := b.fetchBlended(ctx, stopID, opts)
	if err != nil {
		return nil, err
	}
	return finalize(rows, opts), nil
}

// fetchBlended fetches both sources concurrently and matches them, leaving
// window filtering and ordering to the caller so interpolation can still
// see time-less rows.
func (b *Blender) fetchBlended(ctx context.Context, stopID string, opts Options) ([]models.BlendedDeparture, error) {
	scheduleFrom := opts.Now.Add(-time.Duration(opts.WindowMinutes) * time.Minute / 2)
	scheduleTo := opts.Now.Add(time.Duration(opts.WindowMinutes) * time.Minute)

	var (
		wg          sync.WaitGroup
		schedules   []models.Schedule
		predictions []models.Prediction
		schedErr    error
		predErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		schedules, schedErr = b.provider.SchedulesForStop(ctx, stopID, scheduleFrom, scheduleTo)
	}()
	go func() {
		defer wg.Done()
		predictions, predErr = b.provider.PredictionsForStop(ctx, stopID)
	}()
	wg.Wait()

	if schedErr != nil {
		return nil, fmt.Errorf("schedules for stop %s: %w", stopID, schedErr)
	}
	if predErr != nil {
		return nil, fmt.Errorf("predictions for stop %s: %w", stopID, predErr)
	}

	return blendAll(schedules, predictions, opts), nil
}

// Blend reconciles already-fetched schedule and prediction rows. Exposed
// for cache-backed callers and tests.
func Blend(schedules []models.Schedule, predictions []models.Prediction, opts Options) []models.BlendedDeparture {
	opts = opts.normalized()
	return finalize(blendAll(schedules, predictions, opts), opts)
}

type matchKey struct {
	tripID string
	stopID string
	seq    int
}

// blendAll implements the match-and-merge: schedule rows consume their
// matching prediction (by trip, stop, stop-sequence); leftover predictions
// emit their own rows.
func blendAll(schedules []models.Schedule, predictions []models.Prediction, opts Options) []models.BlendedDeparture {
	lookup := make(map[matchKey]int, len(predictions))
	consumed := make([]bool, len(predictions))
	for i, p := range predictions {
		if p.TripID == "" || p.StopID == "" || p.StopSequence == nil {
			continue
		}
		key := matchKey{tripID: p.TripID, stopID: p.StopID, seq: *p.StopSequence}
		if _, exists := lookup[key]; !exists {
			lookup[key] = i
		}
	}

	out := make([]models.BlendedDeparture, 0, len(schedules)+len(predictions))
	for i := range schedules {
		sched := &schedules[i]
		var pred *models.Prediction
		if sched.TripID != "" && sched.StopID != "" && sched.StopSequence != nil {
			key := matchKey{tripID: sched.TripID, stopID: sched.StopID, seq: *sched.StopSequence}
			if idx, ok := lookup[key]; ok {
				pred = &predictions[idx]
				consumed[idx] = true
				delete(lookup, key)
			}
		}
		out = append(out, newBlended(sched, pred, opts))
	}
	for i := range predictions {
		if consumed[i] {
			continue
		}
		out = append(out, newBlended(nil, &predictions[i], opts))
	}
	return out
}

// bestTime prefers the departure timestamp, falling back to arrival.
func bestTime(departure, arrival *time.Time) *time.Time {
	if departure != nil {
		return departure
	}
	return arrival
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func newBlended(sched *models.Schedule, pred *models.Prediction, opts Options) models.BlendedDeparture {
	d := models.BlendedDeparture{
		StopName:  opts.StopName,
		EtaSource: models.SourceUnknown,
		Status:    models.StatusUnknown,
	}

	if sched != nil {
		d.StopID = sched.StopID
		d.RouteID = sched.RouteID
		d.TripID = sched.TripID
		d.DirectionID = sched.DirectionID
		d.StopSequence = sched.StopSequence
		d.ScheduledTime = bestTime(sched.DepartureTime, sched.ArrivalTime)
		if sched.TripHeadsign != "" {
			d.Headsign = sched.TripHeadsign
		} else {
			d.Headsign = sched.StopHeadsign
		}
	}
	if pred != nil {
		if d.StopID == "" {
			d.StopID = pred.StopID
		}
		if d.RouteID == "" {
			d.RouteID = pred.RouteID
		}
		if d.TripID == "" {
			d.TripID = pred.TripID
		}
		if d.DirectionID == nil {
			d.DirectionID = pred.DirectionID
		}
		if d.StopSequence == nil {
			d.StopSequence = pred.StopSequence
		}
		d.PredictedTime = bestTime(pred.DepartureTime, pred.ArrivalTime)
	}

	switch {
	case d.PredictedTime != nil:
		d.EtaSource = models.SourcePrediction
	case d.ScheduledTime != nil:
		d.EtaSource = models.SourceSchedule
	}

	switch {
	case pred != nil && pred.Status != "":
		d.Status = StatusFromText(pred.Status)
	case sched != nil:
		// No prediction text to signal otherwise.
		d.Status = models.StatusOnTime
	}

	d.FinalTime = d.PredictedTime
	if d.FinalTime == nil {
		d.FinalTime = d.ScheduledTime
	}
	if d.FinalTime != nil {
		d.EtaMinutes = models.IntPtr(roundMinutes(d.FinalTime.Sub(opts.Now)))
	}
	if d.PredictedTime != nil && d.ScheduledTime != nil {
		d.DiscrepancyMinutes = models.IntPtr(roundMinutes(d.PredictedTime.Sub(*d.ScheduledTime)))
	}
	return d
}

// finalize drops rows without a resolvable final time or outside the
// lookahead window, sorts ascending by final time (stable, so ties keep
// enumeration order) and caps the result.
func finalize(rows []models.BlendedDeparture, opts Options) []models.BlendedDeparture {
	from, to := opts.window()
	out := make([]models.BlendedDeparture, 0, len(rows))
	for _, r := range rows {
		if r.FinalTime == nil {
			continue
		}
		if r.FinalTime.Before(from) || r.FinalTime.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalTime.Before(*out[j].FinalTime)
	})
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}
