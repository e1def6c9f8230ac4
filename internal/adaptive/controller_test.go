package adaptive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

type ControllerSuite struct {
	suite.Suite

	ctx        context.Context
	table      *Table
	segments   *memorySegmentStore
	events     *memoryFeedbackLog
	controller *Controller
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.table = NewTable()
	s.segments = newMemorySegmentStore()
	s.events = newMemoryFeedbackLog()
	s.controller = NewController(s.table, s.segments, s.events, time.Second)
}

func (s *ControllerSuite) ingest(city string, polarity models.FeedbackPolarity, action models.Action) *models.FeedbackResult {
	result, err := s.controller.Ingest(s.ctx, models.FeedbackEvent{
		ID:       "evt-" + city,
		CaseID:   "case-1",
		City:     city,
		Polarity: polarity,
		Action:   action,
	})
	s.Require().NoError(err)
	return result
}

// Scenario: a fresh city receives one approval for the high-FSI action,
// then one rejection for it. Weight deltas, approval rate, and the
// confidence multiplier must track exactly.
func (s *ControllerSuite) TestApproveThenRejectSameAction() {
	first := s.ingest("Riverton", models.FeedbackApprove, models.ActionHighFSI)
	s.True(first.WeightsUpdated)
	s.InDelta(1.0, first.ActionWeights[models.ActionLowFSI], 1e-9)
	s.InDelta(1.0, first.ActionWeights[models.ActionMediumFSI], 1e-9)
	s.InDelta(1.05, first.ActionWeights[models.ActionHighFSI], 1e-9)
	s.InDelta(1.0, first.ApprovalRate, 1e-9)
	s.InDelta(1.10, first.Multiplier, 1e-9)

	second := s.ingest("Riverton", models.FeedbackReject, models.ActionHighFSI)
	s.InDelta(1.02, second.ActionWeights[models.ActionHighFSI], 1e-9)
	s.InDelta(0.5, second.ApprovalRate, 1e-9)
	s.InDelta(0.90, second.Multiplier, 1e-9)
}

func (s *ControllerSuite) TestAdjustConfidenceAppliesMultiplier() {
	s.ingest("Riverton", models.FeedbackApprove, models.ActionHighFSI)
	s.ingest("Riverton", models.FeedbackReject, models.ActionHighFSI)

	// 50% approval lands in the 0.90 band.
	adjusted, explanation := s.controller.AdjustConfidence("Riverton", 0.80)
	s.InDelta(0.72, adjusted, 1e-9)
	s.Contains(explanation, "Confidence reduced by 10%")
	s.Contains(explanation, "50% approval rate")
	s.Contains(explanation, "Riverton")
}

func (s *ControllerSuite) TestAdjustConfidenceCapsAtOne() {
	s.ingest("Riverton", models.FeedbackApprove, models.ActionMediumFSI)

	adjusted, explanation := s.controller.AdjustConfidence("Riverton", 0.95)
	s.InDelta(1.0, adjusted, 1e-9)
	s.Contains(explanation, "Confidence boosted by 10%")
}

func (s *ControllerSuite) TestAdjustConfidenceUnknownCityPassesThrough() {
	adjusted, explanation := s.controller.AdjustConfidence("Atlantis", 0.67)
	s.InDelta(0.67, adjusted, 1e-9)
	s.Equal("No feedback data for this city yet", explanation)
}

func (s *ControllerSuite) TestCityKeyNormalization() {
	s.ingest("  Riverton ", models.FeedbackApprove, models.ActionLowFSI)
	s.ingest("riverton", models.FeedbackApprove, models.ActionLowFSI)

	stats := s.controller.Statistics("RIVERTON")
	s.Equal(2, stats.TotalCases)
}

func (s *ControllerSuite) TestSegmentIsolation() {
	for i := 0; i < 4; i++ {
		s.ingest("Riverton", models.FeedbackReject, models.ActionLowFSI)
	}
	s.ingest("Lakewood", models.FeedbackApprove, models.ActionLowFSI)

	riverton := s.controller.Statistics("Riverton")
	lakewood := s.controller.Statistics("Lakewood")
	s.InDelta(0.0, riverton.ApprovalRate, 1e-9)
	s.InDelta(1.0, lakewood.ApprovalRate, 1e-9)
	s.InDelta(1.0, lakewood.ActionWeights[models.ActionMediumFSI], 1e-9)
}

func (s *ControllerSuite) TestWeightClampedAtUpperBound() {
	// 25 approvals would push the raw weight past 2.0 without clamping.
	for i := 0; i < 25; i++ {
		s.ingest("Riverton", models.FeedbackApprove, models.ActionHighFSI)
	}
	w, ok := s.table.Get("Riverton")
	s.Require().True(ok)
	s.InDelta(models.MaxActionWeight, w.ActionWeights[models.ActionHighFSI], 1e-9)
}

func (s *ControllerSuite) TestWeightClampedAtLowerBound() {
	for i := 0; i < 40; i++ {
		s.ingest("Riverton", models.FeedbackReject, models.ActionLowFSI)
	}
	w, ok := s.table.Get("Riverton")
	s.Require().True(ok)
	s.InDelta(models.MinActionWeight, w.ActionWeights[models.ActionLowFSI], 1e-9)
}

func (s *ControllerSuite) TestBaseRewardTracksApprovalRate() {
	s.ingest("Riverton", models.FeedbackApprove, models.ActionLowFSI)
	s.ingest("Riverton", models.FeedbackApprove, models.ActionLowFSI)
	s.ingest("Riverton", models.FeedbackReject, models.ActionLowFSI)

	w, ok := s.table.Get("Riverton")
	s.Require().True(ok)
	s.InDelta(0.5+2.0/3.0, w.BaseReward, 1e-9)
}

func (s *ControllerSuite) TestStatusTransitions() {
	s.Equal(models.SegmentUnseen, s.controller.Statistics("Riverton").Status)

	for i := 0; i < 5; i++ {
		s.ingest("Riverton", models.FeedbackApprove, models.ActionLowFSI)
		s.Equal(models.SegmentLearning, s.controller.Statistics("Riverton").Status)
	}

	s.ingest("Riverton", models.FeedbackApprove, models.ActionLowFSI)
	s.Equal(models.SegmentActive, s.controller.Statistics("Riverton").Status)
}

func (s *ControllerSuite) TestInvalidPolarityRejected() {
	_, err := s.controller.Ingest(s.ctx, models.FeedbackEvent{
		ID:       "evt-bad",
		City:     "Riverton",
		Polarity: "sideways",
		Action:   models.ActionLowFSI,
	})
	s.Error(err)
	s.Empty(s.events.events)
}

func (s *ControllerSuite) TestEventLogFailureLeavesTableUntouched() {
	s.events.failing = true

	_, err := s.controller.Ingest(s.ctx, models.FeedbackEvent{
		ID:       "evt-1",
		City:     "Riverton",
		Polarity: models.FeedbackApprove,
		Action:   models.ActionLowFSI,
	})
	s.Require().ErrorIs(err, ErrPersistenceWrite)

	_, ok := s.table.Get("Riverton")
	s.False(ok)
	s.Zero(s.segments.saves)
}

func (s *ControllerSuite) TestSegmentSaveFailureLeavesWeightsUntouched() {
	s.ingest("Riverton", models.FeedbackApprove, models.ActionHighFSI)
	s.segments.failing = true

	_, err := s.controller.Ingest(s.ctx, models.FeedbackEvent{
		ID:       "evt-2",
		City:     "Riverton",
		Polarity: models.FeedbackApprove,
		Action:   models.ActionHighFSI,
	})
	s.Require().ErrorIs(err, ErrPersistenceWrite)

	w, ok := s.table.Get("Riverton")
	s.Require().True(ok)
	s.Equal(1, w.TotalCases)
	s.InDelta(1.05, w.ActionWeights[models.ActionHighFSI], 1e-9)
}

func (s *ControllerSuite) TestAuditTrailRecordsWeightChange() {
	result := s.ingest("Riverton", models.FeedbackApprove, models.ActionHighFSI)
	s.NotEmpty(result.AuditTrail)
	s.Contains(result.AuditTrail[0], "Processing feedback for case case-1")

	var sawDelta, sawChange, sawPersist bool
	for _, line := range result.AuditTrail {
		switch {
		case line == "Positive feedback: action weight delta +0.05":
			sawDelta = true
		case line == "Segment weights persisted":
			sawPersist = true
		case strings.Contains(line, "Weight change for High FSI: 1.000 -> 1.050"):
			sawChange = true
		}
	}
	s.True(sawDelta)
	s.True(sawChange)
	s.True(sawPersist)
}

func (s *ControllerSuite) TestSummaryAggregatesAcrossCities() {
	s.ingest("Riverton", models.FeedbackApprove, models.ActionLowFSI)
	s.ingest("Riverton", models.FeedbackReject, models.ActionLowFSI)
	s.ingest("Lakewood", models.FeedbackApprove, models.ActionMediumFSI)

	summary, err := s.controller.Summary(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(3, summary.TotalFeedback)
	s.Equal(2, summary.TotalPositive)
	s.InDelta(2.0/3.0, summary.OverallApprovalRate, 1e-9)
	s.Equal(2, summary.CitiesTracked)
	s.Len(summary.CityBreakdown, 2)
	s.Len(summary.RecentEvents, 3)
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func TestConfidenceMultiplierBands(t *testing.T) {
	cases := []struct {
		rate float64
		want float64
	}{
		{0.0, 0.80},
		{0.49, 0.80},
		{0.50, 0.90},
		{0.69, 0.90},
		{0.70, 1.00},
		{0.84, 1.00},
		{0.85, 1.10},
		{1.00, 1.10},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ConfidenceMultiplier(tc.rate), 1e-9, "rate %.2f", tc.rate)
	}
}

func TestConfidenceMultiplierMonotonic(t *testing.T) {
	prev := 0.0
	for rate := 0.0; rate <= 1.0; rate += 0.01 {
		m := ConfidenceMultiplier(rate)
		require.GreaterOrEqual(t, m, prev, "rate %.2f", rate)
		prev = m
	}
}
