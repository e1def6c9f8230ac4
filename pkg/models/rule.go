// Package models contains domain models for the rule intelligence platform.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ConditionKind discriminates the tagged condition variant.
type ConditionKind int

const (
	// ConditionRange is a closed-or-half-open numeric interval.
	ConditionRange ConditionKind = iota
	// ConditionCategorical is a set of admissible string values.
	ConditionCategorical
)

// Condition is a single resolved rule condition. Conditions are parsed once at
// rule-load time; the matcher never branches on raw JSON shapes.
type Condition struct {
	Kind ConditionKind

	// Range variant. IncludeMax preserves the boundary family: the plot-area
	// family matches min <= v <= max, the road-width family min <= v < max.
	Min        float64
	Max        float64
	IncludeMax bool

	// Categorical variant.
	Values []string
}

// Matches reports whether the condition is satisfied by a numeric value.
func (c Condition) MatchesNumber(v float64) bool {
	if c.Kind != ConditionRange {
		return false
	}
	if v < c.Min {
		return false
	}
	if c.IncludeMax {
		return v <= c.Max
	}
	return v < c.Max
}

// MatchesText reports whether the condition is satisfied by a categorical value.
func (c Condition) MatchesText(v string) bool {
	if c.Kind != ConditionCategorical {
		return false
	}
	for _, candidate := range c.Values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Condition keys carried over from the regulatory rule packs.
const (
	ConditionKeyRoadWidth = "road_width_m"
	ConditionKeyPlotArea  = "plot_area_sqm"
	ConditionKeyLocation  = "location"
)

// closedUpperBoundKeys lists the numeric condition families whose upper bound
// is inclusive. Road-width bands are half-open so a case sitting exactly on a
// band boundary matches exactly one adjacent band; plot-area bands close the
// upper bound instead. The distinction is load-bearing and must not be unified.
var closedUpperBoundKeys = map[string]bool{
	ConditionKeyPlotArea: true,
}

// ConditionSet maps a condition key to its resolved condition.
type ConditionSet map[string]Condition

// ParseConditions resolves a raw JSON condition document into a ConditionSet.
// Numeric conditions must carry {"min": x, "max": y}; categorical conditions
// may be a JSON array of strings or a single scalar string.
func ParseConditions(raw map[string]json.RawMessage) (ConditionSet, error) {
	set := make(ConditionSet, len(raw))
	for key, doc := range raw {
		var numeric struct {
			Min *float64 `json:"min"`
			Max *float64 `json:"max"`
		}
		if err := json.Unmarshal(doc, &numeric); err == nil && numeric.Min != nil && numeric.Max != nil {
			set[key] = Condition{
				Kind:       ConditionRange,
				Min:        *numeric.Min,
				Max:        *numeric.Max,
				IncludeMax: closedUpperBoundKeys[key],
			}
			continue
		}

		var list []string
		if err := json.Unmarshal(doc, &list); err == nil {
			set[key] = Condition{Kind: ConditionCategorical, Values: list}
			continue
		}

		var scalar string
		if err := json.Unmarshal(doc, &scalar); err == nil {
			set[key] = Condition{Kind: ConditionCategorical, Values: []string{scalar}}
			continue
		}

		return nil, fmt.Errorf("condition %q: unsupported shape %s", key, string(doc))
	}
	return set, nil
}

// UnmarshalJSON resolves conditions directly from a stored JSON document.
func (s *ConditionSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseConditions(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON serializes the set back into the rule-pack document shape.
func (s ConditionSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s))
	for key, cond := range s {
		switch cond.Kind {
		case ConditionRange:
			out[key] = map[string]float64{"min": cond.Min, "max": cond.Max}
		case ConditionCategorical:
			out[key] = cond.Values
		}
	}
	return json.Marshal(out)
}

// Scan implements sql.Scanner so condition documents stored as JSON text
// columns resolve into the tagged variant on read.
func (s *ConditionSet) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("ConditionSet: unsupported type %T", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return s.UnmarshalJSON(data)
}

// Value implements driver.Valuer for ConditionSet.
func (s ConditionSet) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return s.MarshalJSON()
}

// Entitlements maps an entitlement name to its numeric or string value.
type Entitlements map[string]any

// Scan implements sql.Scanner for Entitlements.
func (e *Entitlements) Scan(src interface{}) error {
	if src == nil {
		*e = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("Entitlements: unsupported type %T", src)
	}
	if len(data) == 0 {
		*e = nil
		return nil
	}
	return json.Unmarshal(data, e)
}

// Value implements driver.Valuer for Entitlements.
func (e Entitlements) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// Rule is a single regulatory condition/entitlement record. Rules are
// immutable once loaded; the core only reads them.
type Rule struct {
	ID           string       `json:"id"`
	City         string       `json:"city"`
	RuleType     string       `json:"rule_type"`
	Conditions   ConditionSet `json:"conditions"`
	Entitlements Entitlements `json:"entitlements"`
	Notes        string       `json:"notes,omitempty"`
	Authority    string       `json:"authority,omitempty"`
	ClauseNo     string       `json:"clause_no,omitempty"`
	Page         string       `json:"page,omitempty"`
}

// MatchResult is the de-duplicated, first-matched-order set of rules whose
// conditions all hold for a case.
type MatchResult struct {
	Rules []Rule `json:"rules"`
}

// RuleIDs returns the matched rule identifiers in result order.
func (m MatchResult) RuleIDs() []string {
	ids := make([]string, len(m.Rules))
	for i, r := range m.Rules {
		ids[i] = r.ID
	}
	return ids
}

// Empty reports whether no rules matched. An empty result is valid: it means
// no facts are available, not that matching failed.
func (m MatchResult) Empty() bool {
	return len(m.Rules) == 0
}
