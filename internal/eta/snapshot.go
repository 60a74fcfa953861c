package eta

import (
	"context"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/models"
)

// SnapshotService wraps the Blender with two access modes: a cached-only
// snapshot computed from the store's prediction pool, and a live snapshot
// that fetches and interpolates.
type SnapshotService struct {
	blender *Blender
	store   *cache.Store
}

// NewSnapshotService builds a SnapshotService.
func NewSnapshotService(blender *Blender, store *cache.Store) *SnapshotService {
	return &SnapshotService{blender: blender, store: store}
}

// CachedStopSnapshot builds a snapshot for the stop purely from cached
// predictions, with no network call. Returns nil when the cache has no
// predictions entry or no rows survive the window filter; that nil is a
// cache-miss signal, not an error.
func (s *SnapshotService) CachedStopSnapshot(stopID string, opts Options) *models.Snapshot {
	opts = opts.normalized()
	entry := s.store.GetPredictions()
	if entry == nil {
		return nil
	}

	rows := make([]models.BlendedDeparture, 0, 16)
	for i := range entry.Data {
		p := &entry.Data[i]
		if p.StopID != stopID {
			continue
		}
		rows = append(rows, newBlended(nil, p, opts))
	}
	rows = finalize(rows, opts)
	if len(rows) == 0 {
		return nil
	}
	return &models.Snapshot{
		StopID:      stopID,
		StopName:    opts.StopName,
		GeneratedAt: time.Now(),
		Departures:  rows,
	}
}

// StopSnapshot builds a live snapshot: a fresh fetch through the Blender,
// then stop-sequence interpolation for rows the predictions skipped.
func (s *SnapshotService) StopSnapshot(ctx context.Context, stopID string, opts Options) (*models.Snapshot, error) {
	opts = opts.normalized()
	rows, err := s.blender.fetchBlended(ctx, stopID, opts)
	if err != nil {
		return nil, err
	}
	rows = Interpolate(rows, opts.Now)
	rows = finalize(rows, opts)
	return &models.Snapshot{
		StopID:      stopID,
		StopName:    opts.StopName,
		GeneratedAt: time.Now(),
		Departures:  rows,
	}, nil
}
