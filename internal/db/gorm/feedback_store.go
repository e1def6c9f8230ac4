package gorm

import (
	"context"
	"fmt"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// FeedbackStore is the append-only feedback event history.
type FeedbackStore struct {
	store *Store
}

// NewFeedbackStore creates a new feedback store.
func NewFeedbackStore(store *Store) *FeedbackStore {
	return &FeedbackStore{store: store}
}

// Append records one feedback event. Duplicate ids are an error.
func (s *FeedbackStore) Append(ctx context.Context, ev models.FeedbackEvent) error {
	record := feedbackRecord(ev)
	if err := s.store.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("append feedback event %s: %w", ev.ID, err)
	}
	return nil
}

// ListChronological returns the full history in timestamp order.
func (s *FeedbackStore) ListChronological(ctx context.Context) ([]models.FeedbackEvent, error) {
	var records []FeedbackEventRecord
	err := s.store.DB.WithContext(ctx).
		Order("created_at_epoch_ns, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query feedback history: %w", err)
	}
	return toEvents(records), nil
}

// Recent returns the most recent events, oldest first.
func (s *FeedbackStore) Recent(ctx context.Context, limit int) ([]models.FeedbackEvent, error) {
	var records []FeedbackEventRecord
	err := s.store.DB.WithContext(ctx).
		Order("created_at_epoch_ns DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query recent feedback: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return toEvents(records), nil
}

// ForCase returns the events recorded for one case, oldest first.
func (s *FeedbackStore) ForCase(ctx context.Context, caseID string) ([]models.FeedbackEvent, error) {
	var records []FeedbackEventRecord
	err := s.store.DB.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at_epoch_ns, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query feedback for case %s: %w", caseID, err)
	}
	return toEvents(records), nil
}

func toEvents(records []FeedbackEventRecord) []models.FeedbackEvent {
	events := make([]models.FeedbackEvent, len(records))
	for i, r := range records {
		events[i] = r.toModel()
	}
	return events
}
