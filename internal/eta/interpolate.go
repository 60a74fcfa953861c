package eta

import (
	"time"

	"github.com/transitpulse/transitpulse_core/internal/models"
)

type seqBound struct {
	seq int
	t   time.Time
}

// Interpolate fills final times for rows that lack one but carry a known
// stop-sequence, using the nearest timed rows on either side of the
// sequence within the same result set. Interpolated rows are tagged
// "blended"; a row bounded on only one side falls back to its own
// scheduled time. Input rows are never mutated.
func Interpolate(rows []models.BlendedDeparture, now time.Time) []models.BlendedDeparture {
	out := make([]models.BlendedDeparture, len(rows))
	copy(out, rows)

	timed := make([]seqBound, 0, len(out))
	for _, r := range out {
		if r.FinalTime != nil && r.StopSequence != nil {
			timed = append(timed, seqBound{seq: *r.StopSequence, t: *r.FinalTime})
		}
	}

	for i := range out {
		r := &out[i]
		if r.FinalTime != nil || r.StopSequence == nil {
			continue
		}
		seq := *r.StopSequence

		prev, next := nearestBounds(timed, seq)
		if prev != nil && next != nil {
			span := float64(next.seq - prev.seq)
			frac := float64(seq-prev.seq) / span
			t := prev.t.Add(time.Duration(frac * float64(next.t.Sub(prev.t))))
			r.FinalTime = &t
			r.EtaSource = models.SourceBlended
			r.EtaMinutes = models.IntPtr(roundMinutes(t.Sub(now)))
			continue
		}
		applyScheduleFallback(r, now)
	}
	return out
}

// nearestBounds returns the timed rows with the greatest sequence below seq
// and the smallest sequence above it. Two linear scans over an unsorted
// view; no per-row re-sorting.
func nearestBounds(timed []seqBound, seq int) (prev, next *seqBound) {
	for i := range timed {
		b := &timed[i]
		if b.seq < seq && (prev == nil || b.seq > prev.seq) {
			prev = b
		}
		if b.seq > seq && (next == nil || b.seq < next.seq) {
			next = b
		}
	}
	return prev, next
}

func applyScheduleFallback(r *models.BlendedDeparture, now time.Time) {
	if r.ScheduledTime == nil {
		return // stays time-less, excluded downstream
	}
	t := *r.ScheduledTime
	r.FinalTime = &t
	r.EtaSource = models.SourceSchedule
	r.EtaMinutes = models.IntPtr(roundMinutes(t.Sub(now)))
}
