package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// SegmentStore persists per-city segment weights.
type SegmentStore struct {
	store *Store
}

// NewSegmentStore creates a new segment weight store.
func NewSegmentStore(store *Store) *SegmentStore {
	return &SegmentStore{store: store}
}

// LoadAll returns every persisted segment, keyed by city.
func (s *SegmentStore) LoadAll(ctx context.Context) (map[string]*models.SegmentWeights, error) {
	var records []SegmentWeightsRecord
	if err := s.store.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query segment weights: %w", err)
	}

	out := make(map[string]*models.SegmentWeights, len(records))
	for _, r := range records {
		out[r.City] = r.toModel()
	}
	return out, nil
}

// Save upserts one segment's weights.
func (s *SegmentStore) Save(ctx context.Context, w *models.SegmentWeights) error {
	record := segmentRecord(w)
	err := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "city"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save segment weights for %s: %w", w.City, err)
	}
	return nil
}

// ReplaceAll swaps the full table in one transaction, for replay rebuilds.
func (s *SegmentStore) ReplaceAll(ctx context.Context, tables map[string]*models.SegmentWeights) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SegmentWeightsRecord{}).Error; err != nil {
			return fmt.Errorf("clear segment weights: %w", err)
		}
		for _, w := range tables {
			record := segmentRecord(w)
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("insert segment weights for %s: %w", w.City, err)
			}
		}
		return nil
	})
}
