package sqlite

import (
	"context"
	"fmt"
	"time"

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
	rows, err := s.store.QueryContext(ctx,
		"SELECT city, base_reward, action_weights, positive_count, negative_count, total_cases FROM segment_weights")
	if err != nil {
		return nil, fmt.Errorf("query segment weights: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.SegmentWeights)
	for rows.Next() {
		var w models.SegmentWeights
		if err := rows.Scan(&w.City, &w.BaseReward, &w.ActionWeights,
			&w.PositiveCount, &w.NegativeCount, &w.TotalCases); err != nil {
			return nil, fmt.Errorf("scan segment weights: %w", err)
		}
		out[w.City] = &w
	}
	return out, rows.Err()
}

// Save upserts one segment's weights.
func (s *SegmentStore) Save(ctx context.Context, w *models.SegmentWeights) error {
	weights, err := w.ActionWeights.Value()
	if err != nil {
		return fmt.Errorf("encode action weights for %s: %w", w.City, err)
	}

	const query = `
		INSERT INTO segment_weights (city, base_reward, action_weights, positive_count, negative_count, total_cases, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city) DO UPDATE SET
			base_reward = excluded.base_reward,
			action_weights = excluded.action_weights,
			positive_count = excluded.positive_count,
			negative_count = excluded.negative_count,
			total_cases = excluded.total_cases,
			updated_at = excluded.updated_at
	`
	_, err = s.store.ExecContext(ctx, query,
		w.City, w.BaseReward, weights, w.PositiveCount, w.NegativeCount, w.TotalCases,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save segment weights for %s: %w", w.City, err)
	}
	return nil
}

// ReplaceAll swaps the full table in one transaction, for replay rebuilds.
func (s *SegmentStore) ReplaceAll(ctx context.Context, tables map[string]*models.SegmentWeights) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segment replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segment_weights"); err != nil {
		return fmt.Errorf("clear segment weights: %w", err)
	}

	const query = `
		INSERT INTO segment_weights (city, base_reward, action_weights, positive_count, negative_count, total_cases, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, w := range tables {
		weights, err := w.ActionWeights.Value()
		if err != nil {
			return fmt.Errorf("encode action weights for %s: %w", w.City, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			w.City, w.BaseReward, weights, w.PositiveCount, w.NegativeCount, w.TotalCases, now); err != nil {
			return fmt.Errorf("insert segment weights for %s: %w", w.City, err)
		}
	}

	return tx.Commit()
}
