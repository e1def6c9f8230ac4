package explain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

func caseInput() models.CaseInput {
	return models.CaseInput{
		ProjectID: "proj-1",
		CaseID:    "case-1",
		City:      "Riverton",
		Parameters: models.CaseParameters{
			PlotSize:  1200,
			Location:  "urban",
			RoadWidth: 18,
		},
	}
}

func TestExplainNoRules(t *testing.T) {
	e := NewTemplateExplainer()
	got, err := e.Explain(context.Background(), caseInput(), models.MatchResult{})
	require.NoError(t, err)
	assert.Equal(t,
		"No specific compliance rules found for 1200 sqm urban plot on 18m road. "+
			"Please verify parameters or consult local development control regulations.",
		got)
}

func TestExplainFSIEntitlement(t *testing.T) {
	e := NewTemplateExplainer()
	matched := models.MatchResult{Rules: []models.Rule{
		{ID: "DCPR-12.3", Entitlements: models.Entitlements{"total_fsi": 2.5}},
	}}

	got, err := e.Explain(context.Background(), caseInput(), matched)
	require.NoError(t, err)
	assert.Equal(t, "For 1200 sqm urban plot on 18m road: DCPR-12.3 allows FSI 2.5 (3000 sqm buildable).", got)
}

func TestExplainLimitsSummarizedRules(t *testing.T) {
	e := NewTemplateExplainer()
	matched := models.MatchResult{Rules: []models.Rule{
		{ID: "R1", Entitlements: models.Entitlements{"total_fsi": 1.5}},
		{ID: "R2", Entitlements: models.Entitlements{"ground_coverage_percent": 60.0}},
		{ID: "R3", Entitlements: models.Entitlements{"total_fsi": 3.0}},
	}}

	got, err := e.Explain(context.Background(), caseInput(), matched)
	require.NoError(t, err)
	assert.Contains(t, got, "R1 allows FSI 1.5")
	assert.Contains(t, got, "R2 permits 60% ground coverage")
	assert.NotContains(t, got, "R3")
}

func TestExplainRulesWithoutSummarizableEntitlements(t *testing.T) {
	e := NewTemplateExplainer()
	matched := models.MatchResult{Rules: []models.Rule{
		{ID: "R1", Entitlements: models.Entitlements{"setback_m": "see schedule"}},
		{ID: "R2"},
	}}

	got, err := e.Explain(context.Background(), caseInput(), matched)
	require.NoError(t, err)
	assert.Equal(t, "Rules R1, R2 apply to 1200 sqm urban plot.", got)
}

func TestExplainDeterministic(t *testing.T) {
	e := NewTemplateExplainer()
	matched := models.MatchResult{Rules: []models.Rule{
		{ID: "R1", Entitlements: models.Entitlements{"max_height_m": 24.0}},
	}}

	first, err := e.Explain(context.Background(), caseInput(), matched)
	require.NoError(t, err)
	second, err := e.Explain(context.Background(), caseInput(), matched)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConfidenceNote(t *testing.T) {
	assert.Contains(t, ConfidenceNote(models.ConfidenceHigh), "highly confident")
	assert.Contains(t, ConfidenceNote(models.ConfidenceModerate), "moderate confidence")
	assert.Contains(t, ConfidenceNote(models.ConfidenceLow), "low confidence")
}
