package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/adaptive"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/explain"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/policy"
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// RunCase executes the full case pipeline: match rules, generate reasoning,
// score the policy, adjust confidence from the city's feedback history, and
// persist the report. Concurrent submissions of the same case id are
// coalesced into one execution.
func (s *Service) RunCase(ctx context.Context, input models.CaseInput) (*models.CaseReport, error) {
	result, err, _ := s.caseGroup.Do(input.CaseID, func() (interface{}, error) {
		return s.runCase(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.CaseReport), nil
}

func (s *Service) runCase(ctx context.Context, input models.CaseInput) (*models.CaseReport, error) {
	matched := s.matcher.Match(input.City, input.Parameters)

	reasoning, err := s.explainer.Explain(ctx, input, matched)
	if err != nil {
		// Reasoning is presentation, not decision input; degrade to empty
		// rather than failing the case.
		log.Warn().Err(err).Str("case_id", input.CaseID).Msg("Explanation generation failed")
		reasoning = ""
	}

	score, err := s.scorer.Score(input.City, input.Parameters)
	if err != nil && !errors.Is(err, policy.ErrPolicyUnavailable) {
		return nil, fmt.Errorf("score case %s: %w", input.CaseID, err)
	}

	adjusted, note := s.controller.AdjustConfidence(input.City, score.Confidence)
	level := models.ConfidenceLevelFor(adjusted)

	report := &models.CaseReport{
		ProjectID:          input.ProjectID,
		CaseID:             input.CaseID,
		City:               input.City,
		Parameters:         input.Parameters,
		RulesApplied:       matched.RuleIDs(),
		Reasoning:          reasoning,
		ChosenAction:       score.Action,
		ActionLabel:        score.Action.String(),
		RawConfidence:      score.Confidence,
		AdjustedConfidence: adjusted,
		ConfidenceLevel:    level,
		ConfidenceNote:     explain.ConfidenceNote(level),
		Degraded:           score.Degraded,
		AuditTrail: models.StringArray{
			fmt.Sprintf("Matched %d rules in %s", len(matched.Rules), input.City),
			fmt.Sprintf("Policy action: %s (raw confidence %.3f)", score.Action, score.Confidence),
			note,
		},
		GeneratedAt: time.Now().UTC(),
	}

	if err := s.backend.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("persist report for case %s: %w", input.CaseID, err)
	}
	s.cache.SetReport(ctx, report)

	log.Info().
		Str("case_id", input.CaseID).
		Str("city", input.City).
		Int("rules_matched", len(matched.Rules)).
		Str("action", score.Action.String()).
		Float64("confidence", adjusted).
		Bool("degraded", score.Degraded).
		Msg("Case processed")

	return report, nil
}

// IngestFeedback records an approve/reject signal against a shown case
// report. The action the feedback applies to is re-derived from the report's
// matched fact count, keeping live ingestion and history replay in exact
// agreement.
func (s *Service) IngestFeedback(ctx context.Context, ev models.FeedbackEvent) (*models.FeedbackResult, error) {
	report, err := s.backend.reports.GetByCase(ctx, ev.CaseID)
	if err != nil {
		return nil, err
	}

	ev.City = report.City
	if ev.ProjectID == "" {
		ev.ProjectID = report.ProjectID
	}
	ev.Action = adaptive.InferActionFromFactCount(len(report.RulesApplied))

	result, err := s.controller.Ingest(ctx, ev)
	if err != nil {
		return nil, err
	}

	// The adjusted confidence shown for this city changed; drop stale
	// cached views.
	s.cache.InvalidateReport(ctx, ev.CaseID)
	return result, nil
}
