package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// RuleStore provides rule-related database operations.
type RuleStore struct {
	store *Store
}

// NewRuleStore creates a new rule store.
func NewRuleStore(store *Store) *RuleStore {
	return &RuleStore{store: store}
}

// AllRules returns every stored rule, grouped by city and stable within a
// city by rule id.
func (s *RuleStore) AllRules(ctx context.Context) ([]models.Rule, error) {
	var records []RuleRecord
	if err := s.store.DB.WithContext(ctx).Order("city, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	rules := make([]models.Rule, len(records))
	for i, r := range records {
		rules[i] = r.toModel()
	}
	return rules, nil
}

// RulesForCity returns the stored rules for one city, case-insensitively.
func (s *RuleStore) RulesForCity(ctx context.Context, city string) ([]models.Rule, error) {
	var records []RuleRecord
	err := s.store.DB.WithContext(ctx).
		Where("city ILIKE ?", city).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query rules for %s: %w", city, err)
	}

	rules := make([]models.Rule, len(records))
	for i, r := range records {
		rules[i] = r.toModel()
	}
	return rules, nil
}

// UpsertRules inserts or replaces a batch of rules in one transaction.
func (s *RuleStore) UpsertRules(ctx context.Context, rules []models.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	records := make([]RuleRecord, len(rules))
	for i, rule := range rules {
		records[i] = ruleRecord(rule)
	}

	err := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("upsert rules: %w", err)
	}
	return nil
}

// CountRules returns the number of stored rules.
func (s *RuleStore) CountRules(ctx context.Context) (int, error) {
	var n int64
	if err := s.store.DB.WithContext(ctx).Model(&RuleRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return int(n), nil
}
