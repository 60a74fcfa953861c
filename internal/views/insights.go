package views

import (
	"sort"
	"time"
)

// Pain-score and coverage constants are presentation heuristics preserved
// verbatim for client compatibility.
const (
	painBase         = 40
	painAlertPenalty = 30
	lowCoverageRatio = 0.4
	painVehicleFloor = 10
)

// LineInsight is the per-line health row of the system insights view.
type LineInsight struct {
	LineID         string  `json:"lineId"`
	Name           string  `json:"name"`
	PainScore      int     `json:"painScore"`
	ActiveVehicles int     `json:"activeVehicles"`
	ActiveAlerts   int     `json:"activeAlerts"`
	Coverage       float64 `json:"predictionCoverage"`
	LowCoverage    bool    `json:"lowCoverage"`
}

// SystemInsights is the system-wide health view.
type SystemInsights struct {
	Lines       []LineInsight `json:"lines"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// Insights derives a 0-100 pain score per line:
// min(100, 40 + (30 if alerts else 0) + max(0, 10 - min(activeVehicles, 10))).
func (b *Builder) Insights() (*SystemInsights, error) {
	linesEntry := b.store.GetLines()
	if linesEntry == nil {
		return nil, ErrNotReady
	}
	byLine, _, err := b.routesByLine()
	if err != nil {
		return nil, err
	}
	vehiclesByRoute := b.vehiclesByRoute()
	alertsByRoute := b.alertsByRoute()
	predsByRoute := b.predictionsByRoute()

	out := make([]LineInsight, 0, len(linesEntry.Data))
	for _, line := range linesEntry.Data {
		insight := LineInsight{LineID: line.ID, Name: line.LongName}

		tripsWithPredictions := map[string]bool{}
		seenAlerts := map[string]bool{}
		vehicleTrips := map[string]bool{}
		for _, r := range byLine[line.ID] {
			for _, v := range vehiclesByRoute[r.ID] {
				insight.ActiveVehicles++
				if v.TripID != "" {
					vehicleTrips[v.TripID] = true
				}
			}
			for _, p := range predsByRoute[r.ID] {
				if p.TripID != "" {
					tripsWithPredictions[p.TripID] = true
				}
			}
			for _, a := range alertsByRoute[r.ID] {
				if !seenAlerts[a.ID] {
					seenAlerts[a.ID] = true
					insight.ActiveAlerts++
				}
			}
		}

		if len(vehicleTrips) > 0 {
			covered := 0
			for tripID := range vehicleTrips {
				if tripsWithPredictions[tripID] {
					covered++
				}
			}
			insight.Coverage = float64(covered) / float64(len(vehicleTrips))
			insight.LowCoverage = insight.Coverage < lowCoverageRatio
		}

		score := painBase
		if insight.ActiveAlerts > 0 {
			score += painAlertPenalty
		}
		activeCapped := insight.ActiveVehicles
		if activeCapped > painVehicleFloor {
			activeCapped = painVehicleFloor
		}
		if gap := painVehicleFloor - activeCapped; gap > 0 {
			score += gap
		}
		if score > 100 {
			score = 100
		}
		insight.PainScore = score
		out = append(out, insight)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PainScore > out[j].PainScore })
	return &SystemInsights{Lines: out, GeneratedAt: time.Now()}, nil
}
