// Package explain generates the human-readable reasoning attached to case
// reports. The production deployment may plug an external generator in; the
// built-in template explainer is the deterministic fallback and the only
// implementation shipped here.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Explainer produces the reasoning summary for a processed case.
type Explainer interface {
	Explain(ctx context.Context, input models.CaseInput, matched models.MatchResult) (string, error)
}

// TemplateExplainer renders reasoning from the case parameters and matched
// entitlements without any external service. Output is deterministic for a
// given input, which keeps case reports reproducible.
type TemplateExplainer struct{}

// NewTemplateExplainer returns the deterministic explainer.
func NewTemplateExplainer() *TemplateExplainer {
	return &TemplateExplainer{}
}

// maxSummarizedRules bounds the per-rule detail in the summary sentence.
// Additional matches are still listed in the report's rules_applied field.
const maxSummarizedRules = 2

// Explain implements Explainer.
func (e *TemplateExplainer) Explain(_ context.Context, input models.CaseInput, matched models.MatchResult) (string, error) {
	p := input.Parameters
	if matched.Empty() {
		return fmt.Sprintf(
			"No specific compliance rules found for %.0f sqm %s plot on %.0fm road. "+
				"Please verify parameters or consult local development control regulations.",
			p.PlotSize, location(p), p.RoadWidth), nil
	}

	parts := make([]string, 0, maxSummarizedRules)
	for _, rule := range matched.Rules {
		if len(parts) == maxSummarizedRules {
			break
		}
		if s := summarizeRule(rule, p.PlotSize); s != "" {
			parts = append(parts, s)
		}
	}

	if len(parts) == 0 {
		ids := matched.RuleIDs()
		if len(ids) > maxSummarizedRules {
			ids = ids[:maxSummarizedRules]
		}
		return fmt.Sprintf("Rules %s apply to %.0f sqm %s plot.",
			strings.Join(ids, ", "), p.PlotSize, location(p)), nil
	}

	return fmt.Sprintf("For %.0f sqm %s plot on %.0fm road: %s.",
		p.PlotSize, location(p), p.RoadWidth, strings.Join(parts, ", ")), nil
}

// summarizeRule states the headline entitlement of one rule, or "" when the
// rule carries no summarizable entitlement.
func summarizeRule(rule models.Rule, plotSize float64) string {
	if fsi, ok := numericEntitlement(rule.Entitlements, "total_fsi"); ok {
		return fmt.Sprintf("%s allows FSI %.1f (%.0f sqm buildable)", rule.ID, fsi, plotSize*fsi)
	}
	if coverage, ok := numericEntitlement(rule.Entitlements, "ground_coverage_percent"); ok {
		return fmt.Sprintf("%s permits %.0f%% ground coverage", rule.ID, coverage)
	}
	if height, ok := numericEntitlement(rule.Entitlements, "max_height_m"); ok {
		return fmt.Sprintf("%s caps height at %.0fm", rule.ID, height)
	}
	return ""
}

// numericEntitlement reads a numeric entitlement value, tolerating the
// JSON-decoded shapes the rule packs produce.
func numericEntitlement(ents models.Entitlements, key string) (float64, bool) {
	raw, ok := ents[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// ConfidenceNote interprets an adjusted confidence score for the report.
func ConfidenceNote(level models.ConfidenceLevel) string {
	switch level {
	case models.ConfidenceHigh:
		return "The recommendation engine is highly confident in this recommendation."
	case models.ConfidenceModerate:
		return "The recommendation engine has moderate confidence. Review recommended."
	default:
		return "The recommendation engine has low confidence. Manual verification strongly recommended."
	}
}

func location(p models.CaseParameters) string {
	if p.Location == "" {
		return "unspecified"
	}
	return p.Location
}
