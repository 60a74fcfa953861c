package eta

import (
	"context"
	"net/url"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
	"github.com/transitpulse/transitpulse_core/internal/upstream"
)

// APIProvider implements Provider against the upstream client.
type APIProvider struct {
	Client *upstream.Client
}

// SchedulesForStop fetches the stop's schedule rows bounded by a clock-time
// window, with trips included for headsign resolution.
func (p *APIProvider) SchedulesForStop(ctx context.Context, stopID string, from, to time.Time) ([]models.Schedule, error) {
	params := url.Values{}
	params.Set("filter[stop]", stopID)
	params.Set("filter[min_time]", from.Format("15:04"))
	params.Set("filter[max_time]", to.Format("15:04"))
	params.Set("include", "trip")
	params.Set("sort", "departure_time")

	doc, err := p.Client.Schedules(ctx, params)
	if err != nil {
		return nil, err
	}
	return models.DecodeSchedules(doc)
}

// PredictionsForStop fetches the stop's live predictions.
func (p *APIProvider) PredictionsForStop(ctx context.Context, stopID string) ([]models.Prediction, error) {
	params := url.Values{}
	params.Set("filter[stop]", stopID)
	params.Set("sort", "departure_time")

	doc, err := p.Client.Predictions(ctx, params)
	if err != nil {
		return nil, err
	}
	return models.DecodePredictions(doc)
}
