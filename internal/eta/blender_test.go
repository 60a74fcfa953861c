package eta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitpulse/transitpulse_core/internal/models"
)

var testNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func testOpts() Options {
	return Options{Now: testNow, StopName: "Central"}
}

func at(min int) *time.Time {
	return models.TimePtr(testNow.Add(time.Duration(min) * time.Minute))
}

func TestStatusFromText(t *testing.T) {
	tests := []struct {
		text     string
		expected models.DepartureStatus
	}{
		{"", models.StatusOnTime},
		{"On time", models.StatusOnTime},
		{"Delayed 10 min", models.StatusDelayed},
		{"DELAY", models.StatusDelayed},
		{"Trip cancelled", models.StatusCancelled},
		{"Stop will be skipped", models.StatusSkipped},
		{"No service today", models.StatusNoService},
		{"Holding at terminal", models.StatusDelayed},
		{"Boarding", models.StatusOnTime},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFromText(tt.text))
		})
	}
}

func TestBlendMatchedPair(t *testing.T) {
	schedules := []models.Schedule{{
		ID:            "sched-1",
		TripID:        "T1",
		StopID:        "S1",
		RouteID:       "Red",
		StopSequence:  models.IntPtr(5),
		DepartureTime: at(10),
		TripHeadsign:  "Alewife",
	}}
	predictions := []models.Prediction{{
		ID:            "pred-1",
		TripID:        "T1",
		StopID:        "S1",
		RouteID:       "Red",
		StopSequence:  models.IntPtr(5),
		DepartureTime: at(12),
		Status:        "Delayed",
	}}

	rows := Blend(schedules, predictions, testOpts())
	require.Len(t, rows, 1, "a matched pair emits exactly one row")

	d := rows[0]
	assert.Equal(t, "T1", d.TripID)
	assert.Equal(t, models.SourcePrediction, d.EtaSource)
	assert.Equal(t, models.StatusDelayed, d.Status)
	assert.Equal(t, "Alewife", d.Headsign)
	require.NotNil(t, d.FinalTime)
	assert.True(t, d.FinalTime.Equal(*at(12)), "predicted time wins over scheduled")
	require.NotNil(t, d.EtaMinutes)
	assert.Equal(t, 12, *d.EtaMinutes)
	require.NotNil(t, d.DiscrepancyMinutes)
	assert.Equal(t, 2, *d.DiscrepancyMinutes)
}

func TestBlendNoMatchWithoutFullKey(t *testing.T) {
	t.Run("prediction missing stop sequence stands alone", func(t *testing.T) {
		schedules := []models.Schedule{{
			TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(5), DepartureTime: at(10),
		}}
		predictions := []models.Prediction{{
			TripID: "T1", StopID: "S1", DepartureTime: at(12),
		}}

		rows := Blend(schedules, predictions, testOpts())
		require.Len(t, rows, 2)
	})

	t.Run("different stop sequence does not match", func(t *testing.T) {
		schedules := []models.Schedule{{
			TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(5), DepartureTime: at(10),
		}}
		predictions := []models.Prediction{{
			TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(6), DepartureTime: at(12),
		}}

		rows := Blend(schedules, predictions, testOpts())
		require.Len(t, rows, 2)
	})
}

func TestBlendScheduleOnly(t *testing.T) {
	schedules := []models.Schedule{{
		TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(1),
		DepartureTime: at(8), StopHeadsign: "Downtown",
	}}

	rows := Blend(schedules, nil, testOpts())
	require.Len(t, rows, 1)
	assert.Equal(t, models.SourceSchedule, rows[0].EtaSource)
	assert.Equal(t, models.StatusOnTime, rows[0].Status)
	assert.Equal(t, "Downtown", rows[0].Headsign)
	assert.Nil(t, rows[0].DiscrepancyMinutes, "no discrepancy without both times")
}

func TestBlendPredictionOnly(t *testing.T) {
	predictions := []models.Prediction{{
		TripID: "T9", StopID: "S1", RouteID: "Blue",
		StopSequence: models.IntPtr(3), ArrivalTime: at(7),
	}}

	rows := Blend(nil, predictions, testOpts())
	require.Len(t, rows, 1)
	assert.Equal(t, models.SourcePrediction, rows[0].EtaSource)
	assert.Equal(t, "T9", rows[0].TripID)
	require.NotNil(t, rows[0].FinalTime)
	assert.True(t, rows[0].FinalTime.Equal(*at(7)), "arrival time backstops a missing departure time")
	assert.Nil(t, rows[0].DiscrepancyMinutes)
}

func TestBlendOrderingAndWindow(t *testing.T) {
	schedules := []models.Schedule{
		{TripID: "T3", StopID: "S1", StopSequence: models.IntPtr(1), DepartureTime: at(25)},
		{TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(1), DepartureTime: at(5)},
		{TripID: "T2", StopID: "S1", StopSequence: models.IntPtr(1), DepartureTime: at(15)},
		{TripID: "past", StopID: "S1", StopSequence: models.IntPtr(1), DepartureTime: at(-10)},
		{TripID: "far", StopID: "S1", StopSequence: models.IntPtr(1), DepartureTime: at(45)},
	}

	rows := Blend(schedules, nil, testOpts())
	require.Len(t, rows, 3, "rows outside the lookahead window are dropped")
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].FinalTime.Before(*rows[i-1].FinalTime),
			"final times are non-decreasing")
	}
	assert.Equal(t, "T1", rows[0].TripID)
	assert.Equal(t, "T3", rows[2].TripID)
}

func TestBlendDropsTimelessRows(t *testing.T) {
	schedules := []models.Schedule{{TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(2)}}
	rows := Blend(schedules, nil, testOpts())
	assert.Empty(t, rows)
}

func TestBlendMaxResults(t *testing.T) {
	schedules := make([]models.Schedule, 0, 10)
	for i := 0; i < 10; i++ {
		schedules = append(schedules, models.Schedule{
			TripID: "T", StopID: "S1", StopSequence: models.IntPtr(i), DepartureTime: at(i + 1),
		})
	}

	opts := testOpts()
	opts.MaxResults = 4
	rows := Blend(schedules, nil, opts)
	assert.Len(t, rows, 4)
}

type stubProvider struct {
	schedules   []models.Schedule
	predictions []models.Prediction
	schedErr    error
	predErr     error
}

func (s *stubProvider) SchedulesForStop(_ context.Context, _ string, _, _ time.Time) ([]models.Schedule, error) {
	return s.schedules, s.schedErr
}

func (s *stubProvider) PredictionsForStop(_ context.Context, _ string) ([]models.Prediction, error) {
	return s.predictions, s.predErr
}

func TestFetchBlendedDepartures(t *testing.T) {
	t.Run("merges both sources", func(t *testing.T) {
		provider := &stubProvider{
			schedules: []models.Schedule{{
				TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(5), DepartureTime: at(10),
			}},
			predictions: []models.Prediction{{
				TripID: "T1", StopID: "S1", StopSequence: models.IntPtr(5),
				DepartureTime: at(12), Status: "Delayed",
			}},
		}
		blender := NewBlender(provider)

		rows, err := blender.FetchBlendedDepartures(context.Background(), "S1", testOpts())
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.StatusDelayed, rows[0].Status)
	})

	t.Run("schedule failure fails the call", func(t *testing.T) {
		provider := &stubProvider{schedErr: errors.New("upstream down")}
		blender := NewBlender(provider)

		_, err := blender.FetchBlendedDepartures(context.Background(), "S1", testOpts())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schedules for stop S1")
	})

	t.Run("prediction failure fails the call", func(t *testing.T) {
		provider := &stubProvider{predErr: errors.New("upstream down")}
		blender := NewBlender(provider)

		_, err := blender.FetchBlendedDepartures(context.Background(), "S1", testOpts())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "predictions for stop S1")
	})
}
