package adaptive

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Replayer rebuilds the segment weight table from the full feedback history.
// It runs before every retraining pass so the reward function reflects the
// complete history, not just whatever was applied incrementally while serving.
type Replayer struct {
	table    *Table
	segments SegmentStore
	events   FeedbackLog
}

// NewReplayer creates a replayer over the live table and its durable stores.
func NewReplayer(table *Table, segments SegmentStore, events FeedbackLog) *Replayer {
	return &Replayer{table: table, segments: segments, events: events}
}

// Rebuild replays every stored feedback event, in timestamp order, through
// the same update logic as live ingestion, then atomically swaps the result
// into the durable store and the live table. Returns the rebuilt table.
//
// Rebuild is idempotent: the same history always produces byte-for-byte
// identical weights. Segments known to the live table but absent from the
// history reset to defaults, keeping the table a pure function of history.
func (r *Replayer) Rebuild(ctx context.Context) (map[string]*models.SegmentWeights, error) {
	events, err := r.events.ListChronological(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feedback history: %w", err)
	}

	rebuilt := RebuildFromEvents(r.table.Cities(), events)

	if err := r.segments.ReplaceAll(ctx, rebuilt); err != nil {
		return nil, fmt.Errorf("persist rebuilt table: %w: %v", ErrPersistenceWrite, err)
	}
	r.table.ReplaceAll(rebuilt)

	log.Info().
		Int("events", len(events)).
		Int("segments", len(rebuilt)).
		Msg("Segment table rebuilt from feedback history")

	return rebuilt, nil
}

// RebuildFromEvents computes a fresh table from scratch: defaults for every
// known city, then every event applied in timestamp order. Pure; shared by
// Rebuild and the divergence property tests.
func RebuildFromEvents(knownCities []string, events []models.FeedbackEvent) map[string]*models.SegmentWeights {
	sorted := make([]models.FeedbackEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	rebuilt := make(map[string]*models.SegmentWeights)
	for _, city := range knownCities {
		rebuilt[segmentKey(city)] = models.NewSegmentWeights(city)
	}
	for _, ev := range sorted {
		key := segmentKey(ev.City)
		w, ok := rebuilt[key]
		if !ok {
			w = models.NewSegmentWeights(ev.City)
			rebuilt[key] = w
		}
		applyFeedback(w, ev)
	}

	// Re-key by original city name for the store.
	out := make(map[string]*models.SegmentWeights, len(rebuilt))
	for _, w := range rebuilt {
		out[w.City] = w
	}
	return out
}

// Diverges compares two tables and reports the first difference found, or an
// empty string when they agree. Live-vs-replay divergence is a defect caught
// in tests, not a runtime condition to handle.
func Diverges(a, b map[string]*models.SegmentWeights) string {
	if len(a) != len(b) {
		return fmt.Sprintf("segment count %d != %d", len(a), len(b))
	}
	for city, wa := range a {
		wb, ok := b[city]
		if !ok {
			return fmt.Sprintf("segment %s missing", city)
		}
		if wa.TotalCases != wb.TotalCases || wa.PositiveCount != wb.PositiveCount || wa.NegativeCount != wb.NegativeCount {
			return fmt.Sprintf("segment %s: counters differ", city)
		}
		if math.Abs(wa.BaseReward-wb.BaseReward) > 1e-12 {
			return fmt.Sprintf("segment %s: base reward %.12f != %.12f", city, wa.BaseReward, wb.BaseReward)
		}
		if len(wa.ActionWeights) != len(wb.ActionWeights) {
			return fmt.Sprintf("segment %s: weight vector length differs", city)
		}
		for i := range wa.ActionWeights {
			if math.Abs(wa.ActionWeights[i]-wb.ActionWeights[i]) > 1e-12 {
				return fmt.Sprintf("segment %s: action %d weight %.12f != %.12f", city, i, wa.ActionWeights[i], wb.ActionWeights[i])
			}
		}
	}
	return ""
}
