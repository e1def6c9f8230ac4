// Package adaptive implements the per-city feedback adaptation loop: segment
// weight tables, feedback ingestion, confidence adjustment, replay, and the
// training-time reward function.
package adaptive

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// ErrPersistenceWrite signals that a feedback mutation could not be made
// durable. Callers must not treat the feedback as accepted; accepting it
// would silently break the replay invariant.
var ErrPersistenceWrite = errors.New("segment persistence write failed")

// SegmentStore is the durable key->struct store for segment weights.
// Implementations must support snapshot load at startup and atomic per-key
// updates; ReplaceAll swaps the whole table for replay rebuilds.
type SegmentStore interface {
	LoadAll(ctx context.Context) (map[string]*models.SegmentWeights, error)
	Save(ctx context.Context, w *models.SegmentWeights) error
	ReplaceAll(ctx context.Context, tables map[string]*models.SegmentWeights) error
}

// FeedbackLog is the append-only feedback event history.
type FeedbackLog interface {
	Append(ctx context.Context, ev models.FeedbackEvent) error
	ListChronological(ctx context.Context) ([]models.FeedbackEvent, error)
	Recent(ctx context.Context, limit int) ([]models.FeedbackEvent, error)
}

// segment pairs a city's weights with its writer lock. Feedback for the same
// city is serialized; different cities never block each other.
type segment struct {
	mu      sync.Mutex
	weights *models.SegmentWeights
}

// Table is the in-memory view of all segment weights. Reads take a snapshot;
// mutations go through withSegment so the single-writer-per-segment invariant
// holds.
type Table struct {
	mu       sync.RWMutex
	segments map[string]*segment
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{segments: make(map[string]*segment)}
}

// LoadFrom replaces the table with the store's persisted snapshot.
func (t *Table) LoadFrom(ctx context.Context, store SegmentStore) error {
	persisted, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	t.ReplaceAll(persisted)
	return nil
}

// ReplaceAll atomically swaps in a full set of segment weights. Used by
// startup load and replay rebuilds so live traffic never observes a
// half-updated table.
func (t *Table) ReplaceAll(tables map[string]*models.SegmentWeights) {
	segments := make(map[string]*segment, len(tables))
	for city, w := range tables {
		segments[segmentKey(city)] = &segment{weights: w.Clone()}
	}

	t.mu.Lock()
	t.segments = segments
	t.mu.Unlock()
}

// Get returns a clone of a city's weights, or false if the segment is unseen.
func (t *Table) Get(city string) (*models.SegmentWeights, bool) {
	t.mu.RLock()
	seg, ok := t.segments[segmentKey(city)]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	return seg.weights.Clone(), true
}

// Snapshot returns a deep copy of every segment's weights, keyed by city.
// Long-running consumers (training) work against the snapshot and never hold
// segment locks.
func (t *Table) Snapshot() map[string]*models.SegmentWeights {
	t.mu.RLock()
	segments := make([]*segment, 0, len(t.segments))
	for _, seg := range t.segments {
		segments = append(segments, seg)
	}
	t.mu.RUnlock()

	out := make(map[string]*models.SegmentWeights, len(segments))
	for _, seg := range segments {
		seg.mu.Lock()
		w := seg.weights.Clone()
		seg.mu.Unlock()
		out[w.City] = w
	}
	return out
}

// Cities returns the cities currently tracked.
func (t *Table) Cities() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cities := make([]string, 0, len(t.segments))
	for _, seg := range t.segments {
		cities = append(cities, seg.weights.City)
	}
	return cities
}

// withSegment runs fn while holding the city's writer lock, creating the
// segment with defaults on first sight. fn receives the live weights and a
// commit callback that installs a replacement on success.
func (t *Table) withSegment(city string, fn func(seg *segment) error) error {
	key := segmentKey(city)

	t.mu.RLock()
	seg, ok := t.segments[key]
	t.mu.RUnlock()

	if !ok {
		t.mu.Lock()
		seg, ok = t.segments[key]
		if !ok {
			seg = &segment{weights: models.NewSegmentWeights(city)}
			t.segments[key] = seg
		}
		t.mu.Unlock()
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	return fn(seg)
}

// segmentKey normalizes the segment key; feedback for " Mumbai" and "Mumbai"
// lands in the same segment.
func segmentKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
