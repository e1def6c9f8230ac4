package adaptive

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// memorySegmentStore is an in-memory SegmentStore for tests.
type memorySegmentStore struct {
	mu      sync.Mutex
	weights map[string]*models.SegmentWeights
	failing bool
	saves   int
}

func newMemorySegmentStore() *memorySegmentStore {
	return &memorySegmentStore{weights: make(map[string]*models.SegmentWeights)}
}

func (s *memorySegmentStore) LoadAll(ctx context.Context) (map[string]*models.SegmentWeights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.SegmentWeights, len(s.weights))
	for k, v := range s.weights {
		out[k] = v.Clone()
	}
	return out, nil
}

func (s *memorySegmentStore) Save(ctx context.Context, w *models.SegmentWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.weights[w.City] = w.Clone()
	s.saves++
	return nil
}

func (s *memorySegmentStore) ReplaceAll(ctx context.Context, tables map[string]*models.SegmentWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.weights = make(map[string]*models.SegmentWeights, len(tables))
	for k, v := range tables {
		s.weights[k] = v.Clone()
	}
	return nil
}

// memoryFeedbackLog is an in-memory append-only FeedbackLog for tests.
type memoryFeedbackLog struct {
	mu      sync.Mutex
	events  []models.FeedbackEvent
	failing bool
}

func newMemoryFeedbackLog() *memoryFeedbackLog {
	return &memoryFeedbackLog{}
}

func (l *memoryFeedbackLog) Append(ctx context.Context, ev models.FeedbackEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return errors.New("disk full")
	}
	l.events = append(l.events, ev)
	return nil
}

func (l *memoryFeedbackLog) ListChronological(ctx context.Context) ([]models.FeedbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.FeedbackEvent, len(l.events))
	copy(out, l.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (l *memoryFeedbackLog) Recent(ctx context.Context, limit int) ([]models.FeedbackEvent, error) {
	all, err := l.ListChronological(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
