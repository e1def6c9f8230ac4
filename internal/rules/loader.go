package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// rulePackDoc is the on-disk shape of a rule pack. Condition documents keep
// their raw form here and are resolved into the tagged variant on conversion.
type rulePackDoc struct {
	City  string        `json:"city" yaml:"city"`
	Rules []rulePackRow `json:"rules" yaml:"rules"`
}

type rulePackRow struct {
	ID           string         `json:"id" yaml:"id"`
	City         string         `json:"city" yaml:"city"`
	RuleType     string         `json:"rule_type" yaml:"rule_type"`
	Conditions   map[string]any `json:"conditions" yaml:"conditions"`
	Entitlements map[string]any `json:"entitlements" yaml:"entitlements"`
	Notes        string         `json:"notes" yaml:"notes"`
	Authority    string         `json:"authority" yaml:"authority"`
	ClauseNo     string         `json:"clause_no" yaml:"clause_no"`
	Page         string         `json:"page" yaml:"page"`
}

// LoadPackFile parses a YAML or JSON rule pack into validated rules.
func LoadPackFile(path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}

	var doc rulePackDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml rule pack %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json rule pack %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("rule pack %s: unsupported extension", path)
	}

	return convertPack(doc, path)
}

// LoadPackDir loads every rule pack in a directory, non-recursively.
func LoadPackDir(dir string) ([]models.Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule pack dir: %w", err)
	}

	var all []models.Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		pack, err := LoadPackFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, pack...)
	}
	return all, nil
}

func convertPack(doc rulePackDoc, path string) ([]models.Rule, error) {
	out := make([]models.Rule, 0, len(doc.Rules))
	for i, row := range doc.Rules {
		if row.ID == "" {
			return nil, fmt.Errorf("rule pack %s: rule %d has no id", path, i)
		}
		city := row.City
		if city == "" {
			city = doc.City
		}
		if city == "" {
			return nil, fmt.Errorf("rule pack %s: rule %s has no city", path, row.ID)
		}

		conditions, err := resolveConditions(row.Conditions)
		if err != nil {
			return nil, fmt.Errorf("rule pack %s: rule %s: %w", path, row.ID, err)
		}

		out = append(out, models.Rule{
			ID:           row.ID,
			City:         city,
			RuleType:     row.RuleType,
			Conditions:   conditions,
			Entitlements: models.Entitlements(row.Entitlements),
			Notes:        row.Notes,
			Authority:    row.Authority,
			ClauseNo:     row.ClauseNo,
			Page:         row.Page,
		})
	}
	return out, nil
}

// resolveConditions funnels the loosely-typed YAML/JSON condition document
// through the canonical JSON parser so both formats resolve identically.
func resolveConditions(raw map[string]any) (models.ConditionSet, error) {
	if len(raw) == 0 {
		return models.ConditionSet{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var set models.ConditionSet
	if err := set.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return set, nil
}
