package adaptive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Confidence multiplier bands over a segment's approval rate.
const (
	multiplierBoost    = 1.10 // approval >= 0.85
	multiplierNeutral  = 1.00 // 0.70 <= approval < 0.85
	multiplierReduce   = 0.90 // 0.50 <= approval < 0.70
	multiplierDistrust = 0.80 // approval < 0.50
)

// ConfidenceMultiplier maps a segment approval rate to the confidence
// adjustment factor. Pure; monotonically non-decreasing in the approval rate.
func ConfidenceMultiplier(approvalRate float64) float64 {
	switch {
	case approvalRate >= 0.85:
		return multiplierBoost
	case approvalRate >= 0.70:
		return multiplierNeutral
	case approvalRate >= 0.50:
		return multiplierReduce
	default:
		return multiplierDistrust
	}
}

// Controller is the adaptive feedback controller. It owns the live segment
// table, applies feedback events to it, and adjusts raw policy confidence
// using each segment's approval history.
type Controller struct {
	table          *Table
	segments       SegmentStore
	events         FeedbackLog
	persistTimeout time.Duration
}

// NewController wires the controller to its durable collaborators.
func NewController(table *Table, segments SegmentStore, events FeedbackLog, persistTimeout time.Duration) *Controller {
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &Controller{
		table:          table,
		segments:       segments,
		events:         events,
		persistTimeout: persistTimeout,
	}
}

// Table exposes the live table for snapshotting (training, replay).
func (c *Controller) Table() *Table {
	return c.table
}

// Ingest records one feedback event and updates the segment's weights.
//
// The event is appended to the durable log and the mutated weights are
// persisted before the call returns; if either write fails the in-memory
// table is left untouched and the caller receives an error wrapping
// ErrPersistenceWrite. Feedback for an unknown city lazily creates the
// segment with defaults.
func (c *Controller) Ingest(ctx context.Context, ev models.FeedbackEvent) (*models.FeedbackResult, error) {
	if !ev.Polarity.Valid() {
		return nil, fmt.Errorf("feedback %s: unknown polarity %q", ev.ID, ev.Polarity)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	audit := []string{
		fmt.Sprintf("[%s] Processing feedback for case %s (city %s)", ev.Timestamp.Format(time.RFC3339), ev.CaseID, ev.City),
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	if err := c.events.Append(writeCtx, ev); err != nil {
		log.Error().Err(err).
			Str("city", ev.City).
			Str("case_id", ev.CaseID).
			Str("operation", "feedback_append").
			Msg("Feedback event write failed")
		return nil, fmt.Errorf("append feedback %s: %w: %v", ev.ID, ErrPersistenceWrite, err)
	}
	audit = append(audit, "Feedback event recorded in history log")

	if ev.Polarity == models.FeedbackApprove {
		audit = append(audit, fmt.Sprintf("Positive feedback: action weight delta %+.2f", ApproveDelta))
	} else {
		audit = append(audit, fmt.Sprintf("Negative feedback: action weight delta %+.2f", RejectDelta))
	}
	audit = append(audit, fmt.Sprintf("Inferred action: %s", ev.Action))

	var result *models.FeedbackResult
	err := c.table.withSegment(ev.City, func(seg *segment) error {
		// Mutate a clone first so a failed durable write leaves the live
		// weights exactly as replay would reconstruct them.
		updated := seg.weights.Clone()
		oldWeight, newWeight := applyFeedback(updated, ev)

		if err := c.segments.Save(writeCtx, updated); err != nil {
			log.Error().Err(err).
				Str("city", ev.City).
				Str("case_id", ev.CaseID).
				Str("operation", "segment_save").
				Msg("Segment weight persistence failed")
			return fmt.Errorf("persist segment %s: %w: %v", ev.City, ErrPersistenceWrite, err)
		}
		seg.weights = updated

		rate := updated.ApprovalRate()
		multiplier := ConfidenceMultiplier(rate)
		audit = append(audit,
			fmt.Sprintf("[%s] Weight change for %s: %.3f -> %.3f", time.Now().UTC().Format(time.RFC3339), ev.Action, oldWeight, newWeight),
			fmt.Sprintf("City approval rate: %.1f%% (%d cases)", rate*100, updated.TotalCases),
			fmt.Sprintf("Confidence adjustment factor: %.3f", multiplier),
			"Segment weights persisted",
		)

		result = &models.FeedbackResult{
			WeightsUpdated: true,
			City:           updated.City,
			ActionWeights:  updated.ActionWeights,
			ApprovalRate:   rate,
			Multiplier:     multiplier,
			Explanation:    c.explainMultiplier(updated),
			AuditTrail:     audit,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("city", ev.City).
		Str("case_id", ev.CaseID).
		Str("polarity", string(ev.Polarity)).
		Int("action", int(ev.Action)).
		Float64("approval_rate", result.ApprovalRate).
		Msg("Feedback ingested")

	return result, nil
}

// AdjustConfidence applies the segment's confidence multiplier to a raw
// policy confidence and explains the adjustment. Unknown cities pass the raw
// value through.
func (c *Controller) AdjustConfidence(city string, rawConfidence float64) (float64, string) {
	w, ok := c.table.Get(city)
	if !ok || w.TotalCases == 0 {
		return rawConfidence, "No feedback data for this city yet"
	}

	multiplier := ConfidenceMultiplier(w.ApprovalRate())
	adjusted := rawConfidence * multiplier
	if adjusted > 1.0 {
		adjusted = 1.0
	}
	return adjusted, c.explainMultiplier(w)
}

// explainMultiplier states the percentage change, approval rate, and sample
// size so the adjustment is auditable.
func (c *Controller) explainMultiplier(w *models.SegmentWeights) string {
	rate := w.ApprovalRate()
	multiplier := ConfidenceMultiplier(rate)
	switch {
	case multiplier > 1.0:
		return fmt.Sprintf("Confidence boosted by %.0f%% based on %.0f%% approval rate in %s (%d cases analyzed)",
			(multiplier-1)*100, rate*100, w.City, w.TotalCases)
	case multiplier < 1.0:
		return fmt.Sprintf("Confidence reduced by %.0f%% due to %.0f%% approval rate in %s (%d cases analyzed)",
			(1-multiplier)*100, rate*100, w.City, w.TotalCases)
	default:
		return fmt.Sprintf("Standard confidence based on %.0f%% approval rate", rate*100)
	}
}

// Statistics returns the presentation view of one segment. Unknown cities
// report defaults with status Unseen.
func (c *Controller) Statistics(city string) models.CityStatistics {
	w, ok := c.table.Get(city)
	if !ok {
		fresh := models.NewSegmentWeights(city)
		return models.CityStatistics{
			City:          city,
			ActionWeights: fresh.ActionWeights,
			Multiplier:    multiplierNeutral,
			Status:        models.SegmentUnseen,
		}
	}
	return models.CityStatistics{
		City:          w.City,
		TotalCases:    w.TotalCases,
		Positive:      w.PositiveCount,
		Negative:      w.NegativeCount,
		ApprovalRate:  w.ApprovalRate(),
		ActionWeights: w.ActionWeights,
		Multiplier:    ConfidenceMultiplier(w.ApprovalRate()),
		Status:        w.Status(),
	}
}

// Summary aggregates feedback across all tracked segments plus the most
// recent events from the history log.
func (c *Controller) Summary(ctx context.Context, recentLimit int) (*models.FeedbackSummary, error) {
	snapshot := c.table.Snapshot()

	summary := &models.FeedbackSummary{
		GeneratedAt:   time.Now().UTC(),
		CitiesTracked: len(snapshot),
	}
	for _, w := range snapshot {
		summary.TotalFeedback += w.TotalCases
		summary.TotalPositive += w.PositiveCount
		summary.CityBreakdown = append(summary.CityBreakdown, c.Statistics(w.City))
	}
	if summary.TotalFeedback > 0 {
		summary.OverallApprovalRate = float64(summary.TotalPositive) / float64(summary.TotalFeedback)
	}

	if recentLimit > 0 {
		recent, err := c.events.Recent(ctx, recentLimit)
		if err != nil {
			return nil, fmt.Errorf("list recent feedback: %w", err)
		}
		summary.RecentEvents = recent
	}
	return summary, nil
}
