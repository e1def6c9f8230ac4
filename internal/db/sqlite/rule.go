package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

const ruleColumns = `id, city, rule_type, conditions, entitlements,
       COALESCE(notes, ''), COALESCE(authority, ''), COALESCE(clause_no, ''), COALESCE(page, '')`

// RuleStore provides rule-related database operations. It backs the in-memory
// fact store and the rule ingestion CLI.
type RuleStore struct {
	store *Store
}

// NewRuleStore creates a new rule store.
func NewRuleStore(store *Store) *RuleStore {
	return &RuleStore{store: store}
}

// AllRules returns every stored rule, grouped by city and stable within a
// city by rule id. The within-city order becomes the matcher's first-seen
// order, so it must not depend on insertion order.
func (s *RuleStore) AllRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.store.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM rules ORDER BY city, id")
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// RulesForCity returns the stored rules for one city, case-insensitively.
func (s *RuleStore) RulesForCity(ctx context.Context, city string) ([]models.Rule, error) {
	rows, err := s.store.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE city = ? COLLATE NOCASE ORDER BY id", city)
	if err != nil {
		return nil, fmt.Errorf("query rules for %s: %w", city, err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertRules inserts or replaces a batch of rules in one transaction.
func (s *RuleStore) UpsertRules(ctx context.Context, rules []models.Rule) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rule upsert: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO rules (id, city, rule_type, conditions, entitlements, notes, authority, clause_no, page)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			city = excluded.city,
			rule_type = excluded.rule_type,
			conditions = excluded.conditions,
			entitlements = excluded.entitlements,
			notes = excluded.notes,
			authority = excluded.authority,
			clause_no = excluded.clause_no,
			page = excluded.page
	`
	for _, rule := range rules {
		conditions, err := rule.Conditions.Value()
		if err != nil {
			return fmt.Errorf("encode conditions for rule %s: %w", rule.ID, err)
		}
		entitlements, err := rule.Entitlements.Value()
		if err != nil {
			return fmt.Errorf("encode entitlements for rule %s: %w", rule.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			rule.ID, rule.City, rule.RuleType, conditions, entitlements,
			rule.Notes, rule.Authority, rule.ClauseNo, rule.Page); err != nil {
			return fmt.Errorf("upsert rule %s: %w", rule.ID, err)
		}
	}

	return tx.Commit()
}

// CountRules returns the number of stored rules.
func (s *RuleStore) CountRules(ctx context.Context) (int, error) {
	var n int
	err := s.store.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&n)
	return n, err
}

func scanRule(rows *sql.Rows) (models.Rule, error) {
	var rule models.Rule
	err := rows.Scan(&rule.ID, &rule.City, &rule.RuleType, &rule.Conditions, &rule.Entitlements,
		&rule.Notes, &rule.Authority, &rule.ClauseNo, &rule.Page)
	if err != nil {
		return models.Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	return rule, nil
}
