package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// ErrReportNotFound is returned when no report exists for a case id.
var ErrReportNotFound = errors.New("case report not found")

// ReportStore persists the case reports shown to users.
type ReportStore struct {
	store *Store
}

// NewReportStore creates a new report store.
func NewReportStore(store *Store) *ReportStore {
	return &ReportStore{store: store}
}

// Save upserts a case report.
func (s *ReportStore) Save(ctx context.Context, report *models.CaseReport) error {
	params, err := json.Marshal(report.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters for case %s: %w", report.CaseID, err)
	}

	record := CaseReportRecord{
		CaseID:             report.CaseID,
		ProjectID:          report.ProjectID,
		City:               report.City,
		Parameters:         string(params),
		RulesApplied:       report.RulesApplied,
		Reasoning:          report.Reasoning,
		ChosenAction:       int(report.ChosenAction),
		ActionLabel:        report.ActionLabel,
		RawConfidence:      report.RawConfidence,
		ConfidenceScore:    report.AdjustedConfidence,
		ConfidenceLevel:    string(report.ConfidenceLevel),
		ConfidenceNote:     report.ConfidenceNote,
		Degraded:           report.Degraded,
		AuditTrail:         report.AuditTrail,
		GeneratedAt:        report.GeneratedAt.UTC().Format(time.RFC3339Nano),
		GeneratedAtEpochNS: report.GeneratedAt.UnixNano(),
	}

	err = s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "case_id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save case report %s: %w", report.CaseID, err)
	}
	return nil
}

// GetByCase returns the report for a case id.
func (s *ReportStore) GetByCase(ctx context.Context, caseID string) (*models.CaseReport, error) {
	var record CaseReportRecord
	err := s.store.DB.WithContext(ctx).Where("case_id = ?", caseID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrReportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query case report %s: %w", caseID, err)
	}
	return toReport(record)
}

// ListByProject returns all reports for a project, newest first.
func (s *ReportStore) ListByProject(ctx context.Context, projectID string) ([]*models.CaseReport, error) {
	var records []CaseReportRecord
	err := s.store.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("generated_at_epoch_ns DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query reports for project %s: %w", projectID, err)
	}

	reports := make([]*models.CaseReport, len(records))
	for i, r := range records {
		report, err := toReport(r)
		if err != nil {
			return nil, err
		}
		reports[i] = report
	}
	return reports, nil
}

func toReport(r CaseReportRecord) (*models.CaseReport, error) {
	report := &models.CaseReport{
		CaseID:             r.CaseID,
		ProjectID:          r.ProjectID,
		City:               r.City,
		RulesApplied:       r.RulesApplied,
		Reasoning:          r.Reasoning,
		ChosenAction:       models.Action(r.ChosenAction),
		ActionLabel:        r.ActionLabel,
		RawConfidence:      r.RawConfidence,
		AdjustedConfidence: r.ConfidenceScore,
		ConfidenceLevel:    models.ConfidenceLevel(r.ConfidenceLevel),
		ConfidenceNote:     r.ConfidenceNote,
		Degraded:           r.Degraded,
		AuditTrail:         r.AuditTrail,
		GeneratedAt:        time.Unix(0, r.GeneratedAtEpochNS).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Parameters), &report.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters for case %s: %w", r.CaseID, err)
	}
	return report, nil
}
