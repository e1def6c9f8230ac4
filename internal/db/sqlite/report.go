package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// ErrReportNotFound is returned when no report exists for a case id.
var ErrReportNotFound = errors.New("case report not found")

const reportColumns = `case_id, project_id, city, parameters, rules_applied, COALESCE(reasoning, ''),
       chosen_action, action_label, raw_confidence, confidence_score, confidence_level,
       COALESCE(confidence_note, ''), degraded, audit_trail, generated_at_epoch_ns`

// ReportStore persists the case reports shown to users. Feedback ingestion
// reads them back to re-derive the displayed action.
type ReportStore struct {
	store *Store
}

// NewReportStore creates a new report store.
func NewReportStore(store *Store) *ReportStore {
	return &ReportStore{store: store}
}

// Save upserts a case report. Re-running a case overwrites its report; the
// feedback history is the append-only record, not this table.
func (s *ReportStore) Save(ctx context.Context, report *models.CaseReport) error {
	params, err := json.Marshal(report.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters for case %s: %w", report.CaseID, err)
	}
	rulesApplied, err := report.RulesApplied.Value()
	if err != nil {
		return fmt.Errorf("encode rules for case %s: %w", report.CaseID, err)
	}
	auditTrail, err := report.AuditTrail.Value()
	if err != nil {
		return fmt.Errorf("encode audit trail for case %s: %w", report.CaseID, err)
	}

	const query = `
		INSERT INTO case_reports (case_id, project_id, city, parameters, rules_applied, reasoning,
			chosen_action, action_label, raw_confidence, confidence_score, confidence_level,
			confidence_note, degraded, audit_trail, generated_at, generated_at_epoch_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			project_id = excluded.project_id,
			city = excluded.city,
			parameters = excluded.parameters,
			rules_applied = excluded.rules_applied,
			reasoning = excluded.reasoning,
			chosen_action = excluded.chosen_action,
			action_label = excluded.action_label,
			raw_confidence = excluded.raw_confidence,
			confidence_score = excluded.confidence_score,
			confidence_level = excluded.confidence_level,
			confidence_note = excluded.confidence_note,
			degraded = excluded.degraded,
			audit_trail = excluded.audit_trail,
			generated_at = excluded.generated_at,
			generated_at_epoch_ns = excluded.generated_at_epoch_ns
	`
	_, err = s.store.ExecContext(ctx, query,
		report.CaseID, report.ProjectID, report.City, string(params), rulesApplied, report.Reasoning,
		int(report.ChosenAction), report.ActionLabel, report.RawConfidence, report.AdjustedConfidence,
		string(report.ConfidenceLevel), report.ConfidenceNote, boolToInt(report.Degraded), auditTrail,
		report.GeneratedAt.UTC().Format(time.RFC3339Nano), report.GeneratedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save case report %s: %w", report.CaseID, err)
	}
	return nil
}

// GetByCase returns the report for a case id.
func (s *ReportStore) GetByCase(ctx context.Context, caseID string) (*models.CaseReport, error) {
	row := s.store.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM case_reports WHERE case_id = ?", caseID)
	report, err := scanReport(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrReportNotFound)
	}
	return report, err
}

// ListByProject returns all reports for a project, newest first.
func (s *ReportStore) ListByProject(ctx context.Context, projectID string) ([]*models.CaseReport, error) {
	rows, err := s.store.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM case_reports WHERE project_id = ? ORDER BY generated_at_epoch_ns DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("query reports for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var reports []*models.CaseReport
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func scanReport(scan func(dest ...any) error) (*models.CaseReport, error) {
	var (
		report   models.CaseReport
		params   string
		action   int
		degraded int
		epochNS  int64
	)
	err := scan(&report.CaseID, &report.ProjectID, &report.City, &params, &report.RulesApplied,
		&report.Reasoning, &action, &report.ActionLabel, &report.RawConfidence,
		&report.AdjustedConfidence, &report.ConfidenceLevel, &report.ConfidenceNote,
		&degraded, &report.AuditTrail, &epochNS)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &report.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters for case %s: %w", report.CaseID, err)
	}
	report.ChosenAction = models.Action(action)
	report.Degraded = degraded != 0
	report.GeneratedAt = time.Unix(0, epochNS).UTC()
	return &report, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
