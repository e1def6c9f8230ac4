package rules

import (
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Matcher selects the rules applicable to a case's parameters. Matching is
// deterministic and allocation-light; it runs on the serving hot path with no
// I/O.
type Matcher struct {
	store *FactStore
}

// NewMatcher creates a matcher over the given fact store.
func NewMatcher(store *FactStore) *Matcher {
	return &Matcher{store: store}
}

// Match returns the de-duplicated set of rules whose conditions are all
// satisfied by the case parameters, in first-seen order.
//
// A rule is kept when every condition key present in BOTH the rule and the
// parameters is satisfied. Rules missing a condition key are unconstrained on
// that key; parameter keys no rule constrains have no filtering effect. A city
// with zero rules yields an empty result, not an error.
func (m *Matcher) Match(city string, params models.CaseParameters) models.MatchResult {
	candidates := m.store.RulesForCity(city)
	if len(candidates) == 0 {
		return models.MatchResult{}
	}

	values := params.Values()

	var result models.MatchResult
	seen := make(map[string]bool, len(candidates))
	for _, rule := range candidates {
		if seen[rule.ID] {
			continue
		}
		if !ruleMatches(rule, values) {
			continue
		}
		seen[rule.ID] = true
		result.Rules = append(result.Rules, rule)
	}
	return result
}

// ruleMatches checks every condition key shared between the rule and the
// supplied parameters.
func ruleMatches(rule models.Rule, values map[string]models.ParamValue) bool {
	for key, cond := range rule.Conditions {
		value, present := values[key]
		if !present {
			continue
		}
		switch cond.Kind {
		case models.ConditionRange:
			if value.IsText || !cond.MatchesNumber(value.Number) {
				return false
			}
		case models.ConditionCategorical:
			if !value.IsText || !cond.MatchesText(value.Text) {
				return false
			}
		}
	}
	return true
}
