package views

import (
	"sort"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

// SegmentHealth classifies a direction's observed headway against the
// route's typical one.
type SegmentHealth string

const (
	HealthGood        SegmentHealth = "good"
	HealthMinorIssues SegmentHealth = "minor_issues"
	HealthMajorIssues SegmentHealth = "major_issues"
)

// LineSummary is one row of the lines list.
type LineSummary struct {
	Line           models.Line `json:"line"`
	RouteIDs       []string    `json:"routeIds"`
	ActiveVehicles int         `json:"activeVehicles"`
	ActiveAlerts   int         `json:"activeAlerts"`
}

// DirectionHeadway is the observed headway for one direction of a line.
type DirectionHeadway struct {
	DirectionID    int           `json:"directionId"`
	HeadwayMinutes *float64      `json:"headwayMinutes,omitempty"`
	Health         SegmentHealth `json:"health"`
}

// LineOverview is the line detail view.
type LineOverview struct {
	Line        models.Line        `json:"line"`
	Routes      []models.Route     `json:"routes"`
	Vehicles    []models.Vehicle   `json:"vehicles"`
	Alerts      []models.Alert     `json:"alerts"`
	Headways    []DirectionHeadway `json:"headways"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// Typical headway minutes by GTFS route type; presentation heuristic used
// only to band observed headways.
var typicalHeadwayMinutes = map[int]float64{
	0: 10, // light rail
	1: 8,  // subway
	2: 30, // commuter rail
	3: 15, // bus
	4: 60, // ferry
}

func typicalHeadway(routeType int) float64 {
	if v, ok := typicalHeadwayMinutes[routeType]; ok {
		return v
	}
	return 12
}

// LineSummaries lists all cached lines with route, vehicle and alert counts.
func (b *Builder) LineSummaries() ([]LineSummary, error) {
	linesEntry := b.store.GetLines()
	if linesEntry == nil {
		return nil, ErrNotReady
	}
	byLine, _, err := b.routesByLine()
	if err != nil {
		return nil, err
	}
	vehicles := b.vehiclesByRoute()
	alerts := b.alertsByRoute()

	lines := append([]models.Line(nil), linesEntry.Data...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].SortOrder < lines[j].SortOrder })

	out := make([]LineSummary, 0, len(lines))
	for _, line := range lines {
		summary := LineSummary{Line: line, RouteIDs: []string{}}
		seenAlerts := map[string]bool{}
		for _, r := range byLine[line.ID] {
			summary.RouteIDs = append(summary.RouteIDs, r.ID)
			summary.ActiveVehicles += len(vehicles[r.ID])
			for _, a := range alerts[r.ID] {
				if !seenAlerts[a.ID] {
					seenAlerts[a.ID] = true
					summary.ActiveAlerts++
				}
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

// LineOverview joins a line's routes with vehicles, alerts and per-direction
// headways computed from the cached prediction pool.
func (b *Builder) LineOverview(lineID string) (*LineOverview, error) {
	linesEntry := b.store.GetLines()
	if linesEntry == nil {
		return nil, ErrNotReady
	}
	var line *models.Line
	for i := range linesEntry.Data {
		if linesEntry.Data[i].ID == lineID {
			line = &linesEntry.Data[i]
			break
		}
	}
	if line == nil {
		return nil, ErrNotFound
	}

	byLine, _, err := b.routesByLine()
	if err != nil {
		return nil, err
	}
	routes := byLine[lineID]
	vehiclesByRoute := b.vehiclesByRoute()
	alertsByRoute := b.alertsByRoute()
	predsByRoute := b.predictionsByRoute()

	var vehicles []models.Vehicle
	var alerts []models.Alert
	var preds []models.Prediction
	seenAlerts := map[string]bool{}
	routeType := 3
	for i, r := range routes {
		if i == 0 {
			routeType = r.Type
		}
		vehicles = append(vehicles, vehiclesByRoute[r.ID]...)
		preds = append(preds, predsByRoute[r.ID]...)
		for _, a := range alertsByRoute[r.ID] {
			if !seenAlerts[a.ID] {
				seenAlerts[a.ID] = true
				alerts = append(alerts, a)
			}
		}
	}

	return &LineOverview{
		Line:        *line,
		Routes:      routes,
		Vehicles:    vehicles,
		Alerts:      alerts,
		Headways:    headwaysByDirection(preds, typicalHeadway(routeType)),
		GeneratedAt: time.Now(),
	}, nil
}

// headwaysByDirection computes the mean consecutive-arrival delta per
// direction and bands it: good within +2 min of typical, major_issues when
// more than double typical, minor_issues otherwise or when no headway could
// be computed at all.
func headwaysByDirection(preds []models.Prediction, typical float64) []DirectionHeadway {
	arrivals := map[int][]time.Time{0: nil, 1: nil}
	for _, p := range preds {
		if p.DirectionID == nil {
			continue
		}
		t := p.ArrivalTime
		if t == nil {
			t = p.DepartureTime
		}
		if t == nil {
			continue
		}
		dir := *p.DirectionID
		arrivals[dir] = append(arrivals[dir], *t)
	}

	out := make([]DirectionHeadway, 0, 2)
	for _, dir := range []int{0, 1} {
		times := arrivals[dir]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		h := DirectionHeadway{DirectionID: dir, Health: HealthMinorIssues}
		if len(times) >= 2 {
			var total time.Duration
			for i := 1; i < len(times); i++ {
				total += times[i].Sub(times[i-1])
			}
			mean := total.Minutes() / float64(len(times)-1)
			h.HeadwayMinutes = &mean
			switch {
			case mean <= typical+2:
				h.Health = HealthGood
			case mean > 2*typical:
				h.Health = HealthMajorIssues
			default:
				h.Health = HealthMinorIssues
			}
		}
		out = append(out, h)
	}
	return out
}

// LineShapes returns the shapes for all routes of a line.
func (b *Builder) LineShapes(lineID string) (map[string][]models.Shape, error) {
	byLine, _, err := b.routesByLine()
	if err != nil {
		return nil, err
	}
	routes, ok := byLine[lineID]
	if !ok {
		return nil, ErrNotFound
	}
	shapesEntry := b.store.GetShapes()
	if shapesEntry == nil {
		return nil, ErrNotReady
	}
	out := make(map[string][]models.Shape, len(routes))
	for _, r := range routes {
		out[r.ID] = shapesEntry.Data[r.ID]
	}
	return out, nil
}

// RouteShapes returns the shapes for one route.
func (b *Builder) RouteShapes(routeID string) ([]models.Shape, error) {
	shapesEntry := b.store.GetShapes()
	if shapesEntry == nil {
		return nil, ErrNotReady
	}
	shapes, ok := shapesEntry.Data[routeID]
	if !ok {
		return nil, ErrNotFound
	}
	return shapes, nil
}
