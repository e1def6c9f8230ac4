package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

const feedbackColumns = `id, case_id, COALESCE(project_id, ''), city, feedback_type, action, created_at_epoch_ns`

// FeedbackStore is the append-only feedback event history.
type FeedbackStore struct {
	store *Store
}

// NewFeedbackStore creates a new feedback store.
func NewFeedbackStore(store *Store) *FeedbackStore {
	return &FeedbackStore{store: store}
}

// Append records one feedback event. Events are immutable; a duplicate id is
// an error, never an overwrite.
func (s *FeedbackStore) Append(ctx context.Context, ev models.FeedbackEvent) error {
	const query = `
		INSERT INTO feedback_events (id, case_id, project_id, city, feedback_type, action, created_at, created_at_epoch_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.store.ExecContext(ctx, query,
		ev.ID, ev.CaseID, ev.ProjectID, ev.City, string(ev.Polarity), int(ev.Action),
		ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("append feedback event %s: %w", ev.ID, err)
	}
	return nil
}

// ListChronological returns the full history in timestamp order. Replay
// depends on this ordering.
func (s *FeedbackStore) ListChronological(ctx context.Context) ([]models.FeedbackEvent, error) {
	rows, err := s.store.QueryContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback_events ORDER BY created_at_epoch_ns, id")
	if err != nil {
		return nil, fmt.Errorf("query feedback history: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Recent returns the most recent events, oldest first.
func (s *FeedbackStore) Recent(ctx context.Context, limit int) ([]models.FeedbackEvent, error) {
	rows, err := s.store.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM (
			SELECT * FROM feedback_events ORDER BY created_at_epoch_ns DESC, id DESC LIMIT ?
		) ORDER BY created_at_epoch_ns, id`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent feedback: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ForCase returns the events recorded for one case, oldest first.
func (s *FeedbackStore) ForCase(ctx context.Context, caseID string) ([]models.FeedbackEvent, error) {
	rows, err := s.store.QueryContext(ctx,
		"SELECT "+feedbackColumns+" FROM feedback_events WHERE case_id = ? ORDER BY created_at_epoch_ns, id", caseID)
	if err != nil {
		return nil, fmt.Errorf("query feedback for case %s: %w", caseID, err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]models.FeedbackEvent, error) {
	var events []models.FeedbackEvent
	for rows.Next() {
		var (
			ev       models.FeedbackEvent
			polarity string
			action   int
			epochNS  int64
		)
		if err := rows.Scan(&ev.ID, &ev.CaseID, &ev.ProjectID, &ev.City, &polarity, &action, &epochNS); err != nil {
			return nil, fmt.Errorf("scan feedback event: %w", err)
		}
		ev.Polarity = models.FeedbackPolarity(polarity)
		ev.Action = models.Action(action)
		ev.Timestamp = time.Unix(0, epochNS).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
