package worker

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/adaptive"
	gormdb "github.com/Soham2704/ai-rule-intelligence-platform/internal/db/gorm"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/db/sqlite"
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// DefaultRecentFeedbackLimit bounds the recent-events section of the
// feedback summary.
const DefaultRecentFeedbackLimit = 20

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// handleHealth handles health check requests.
// Returns 200 immediately (even during init); use /api/ready for readiness.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
	})
}

// handleReady handles readiness check requests.
// Returns 200 only when fully initialized, 503 otherwise.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		if err := s.GetInitError(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Error(w, "service initializing", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// requireReady is middleware that returns 503 if service isn't ready.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				http.Error(w, "service initialization failed: "+err.Error(), http.StatusInternalServerError)
				return
			}
			http.Error(w, "service initializing", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunCaseRequest is the request body for case submission.
type RunCaseRequest struct {
	ProjectID string  `json:"project_id"`
	CaseID    string  `json:"case_id"`
	City      string  `json:"city"`
	PlotSize  float64 `json:"plot_size"`
	Location  string  `json:"location"`
	RoadWidth float64 `json:"road_width"`
}

// handleRunCase runs the full case pipeline and returns the report.
func (s *Service) handleRunCase(w http.ResponseWriter, r *http.Request) {
	var req RunCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.City) == "" {
		http.Error(w, "city is required", http.StatusBadRequest)
		return
	}
	if req.CaseID == "" {
		req.CaseID = uuid.NewString()
	}

	report, err := s.RunCase(r.Context(), models.CaseInput{
		ProjectID: req.ProjectID,
		CaseID:    req.CaseID,
		City:      req.City,
		Parameters: models.CaseParameters{
			PlotSize:  req.PlotSize,
			Location:  req.Location,
			RoadWidth: req.RoadWidth,
		},
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

// handleGetCase returns a stored case report.
func (s *Service) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	if report := s.cache.GetReport(r.Context(), caseID); report != nil {
		writeJSON(w, report)
		return
	}

	report, err := s.backend.reports.GetByCase(r.Context(), caseID)
	if err != nil {
		if isReportNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.cache.SetReport(r.Context(), report)
	writeJSON(w, report)
}

// handleProjectCases lists a project's case reports, newest first.
func (s *Service) handleProjectCases(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	reports, err := s.backend.reports.ListByProject(r.Context(), projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []*models.CaseReport{}
	}
	writeJSON(w, map[string]interface{}{
		"project_id": projectID,
		"case_count": len(reports),
		"cases":      reports,
	})
}

// FeedbackRequest is the request body for feedback submission.
type FeedbackRequest struct {
	CaseID    string `json:"case_id"`
	ProjectID string `json:"project_id"`
	Feedback  string `json:"feedback"`
}

// handleFeedback ingests one approve/reject signal for a shown case result.
func (s *Service) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CaseID == "" {
		http.Error(w, "case_id is required", http.StatusBadRequest)
		return
	}
	polarity := models.FeedbackPolarity(req.Feedback)
	if !polarity.Valid() {
		http.Error(w, "feedback must be 'up' or 'down'", http.StatusBadRequest)
		return
	}

	result, err := s.IngestFeedback(r.Context(), models.FeedbackEvent{
		ID:        uuid.NewString(),
		CaseID:    req.CaseID,
		ProjectID: req.ProjectID,
		Polarity:  polarity,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		switch {
		case isReportNotFound(err):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, adaptive.ErrPersistenceWrite):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, result)
}

// handleFeedbackSummary aggregates feedback across all tracked cities.
func (s *Service) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.controller.Summary(r.Context(), DefaultRecentFeedbackLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

// handleFeedbackForCase lists the feedback events recorded for one case.
func (s *Service) handleFeedbackForCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	events, err := s.backend.feedback.ForCase(r.Context(), caseID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.FeedbackEvent{}
	}
	writeJSON(w, map[string]interface{}{
		"case_id": caseID,
		"count":   len(events),
		"events":  events,
	})
}

// handleRulesForCity lists the loaded rules for one city.
func (s *Service) handleRulesForCity(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	cityRules := s.factStore.RulesForCity(city)
	if cityRules == nil {
		cityRules = []models.Rule{}
	}
	writeJSON(w, map[string]interface{}{
		"city":       city,
		"rule_count": len(cityRules),
		"rules":      cityRules,
	})
}

// handleCityStats returns the adaptive statistics for one city segment.
func (s *Service) handleCityStats(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	if stats := s.cache.GetStatistics(r.Context(), city); stats != nil {
		writeJSON(w, stats)
		return
	}

	stats := s.controller.Statistics(city)
	s.cache.SetStatistics(r.Context(), stats)
	writeJSON(w, stats)
}

// isReportNotFound matches the not-found sentinel of either storage backend.
func isReportNotFound(err error) bool {
	return errors.Is(err, sqlite.ErrReportNotFound) || errors.Is(err, gormdb.ErrReportNotFound)
}
