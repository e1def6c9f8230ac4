package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/adaptive"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/db/sqlite"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/explain"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/policy"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/rules"
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// newTestService wires a fully-initialized service over a throwaway SQLite
// store, bypassing the async init path.
func newTestService(t *testing.T) *Service {
	t.Helper()

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: filepath.Join(t.TempDir(), "worker.db")})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	be := &backend{
		ruleSource: sqlite.NewRuleStore(store),
		segments:   sqlite.NewSegmentStore(store),
		feedback:   sqlite.NewFeedbackStore(store),
		reports:    sqlite.NewReportStore(store),
		close:      func() error { return nil },
	}

	seedRules(t, sqlite.NewRuleStore(store))

	factStore := rules.NewFactStore()
	if err := factStore.LoadFromSource(context.Background(), be.ruleSource); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	table := adaptive.NewTable()
	if err := table.LoadFrom(context.Background(), be.segments); err != nil {
		t.Fatalf("load segments: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := &Service{
		version:    "test",
		backend:    be,
		factStore:  factStore,
		matcher:    rules.NewMatcher(factStore),
		scorer:     policy.NewScorer(),
		controller: adaptive.NewController(table, be.segments, be.feedback, time.Second),
		explainer:  explain.NewTemplateExplainer(),
		router:     chi.NewRouter(),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
	svc.setupMiddleware()
	svc.setupRoutes()
	svc.ready.Store(true)
	return svc
}

func seedRules(t *testing.T, ruleStore *sqlite.RuleStore) {
	t.Helper()

	conditions := func(doc string) models.ConditionSet {
		var set models.ConditionSet
		if err := json.Unmarshal([]byte(doc), &set); err != nil {
			t.Fatalf("parse conditions: %v", err)
		}
		return set
	}

	err := ruleStore.UpsertRules(context.Background(), []models.Rule{
		{
			ID:           "RIV-FSI-1",
			City:         "Riverton",
			RuleType:     "fsi",
			Conditions:   conditions(`{"road_width_m": {"min": 12, "max": 24}, "location": ["urban"]}`),
			Entitlements: models.Entitlements{"total_fsi": 2.5},
		},
		{
			ID:           "RIV-COV-1",
			City:         "Riverton",
			RuleType:     "coverage",
			Conditions:   conditions(`{"plot_area_sqm": {"min": 500, "max": 2000}}`),
			Entitlements: models.Entitlements{"ground_coverage_percent": 60.0},
		},
	})
	if err != nil {
		t.Fatalf("seed rules: %v", err)
	}
}

type HandlersSuite struct {
	suite.Suite

	svc    *Service
	server *httptest.Server
}

func (s *HandlersSuite) SetupTest() {
	s.svc = newTestService(s.T())
	s.server = httptest.NewServer(s.svc.Router())
	s.T().Cleanup(s.server.Close)
}

func (s *HandlersSuite) postJSON(path string, body any) *http.Response {
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(data))
	s.Require().NoError(err)
	return resp
}

func (s *HandlersSuite) get(path string) *http.Response {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	return resp
}

func (s *HandlersSuite) decode(resp *http.Response, dest any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(dest))
}

func (s *HandlersSuite) runCase(caseID string) models.CaseReport {
	resp := s.postJSON("/api/run_case", RunCaseRequest{
		ProjectID: "proj-1",
		CaseID:    caseID,
		City:      "Riverton",
		PlotSize:  1200,
		Location:  "urban",
		RoadWidth: 18,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var report models.CaseReport
	s.decode(resp, &report)
	return report
}

func (s *HandlersSuite) TestHealthAndReady() {
	resp := s.get("/health")
	var health map[string]interface{}
	s.decode(resp, &health)
	s.Equal("ready", health["status"])
	s.Equal("test", health["version"])

	resp = s.get("/api/ready")
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlersSuite) TestReadyGatingDuringInit() {
	s.svc.ready.Store(false)
	defer s.svc.ready.Store(true)

	resp := s.get("/api/ready")
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp = s.postJSON("/api/run_case", RunCaseRequest{City: "Riverton"})
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	// Health stays reachable while initializing.
	resp = s.get("/health")
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlersSuite) TestRunCaseMatchesAndDegrades() {
	report := s.runCase("case-1")

	// Both seeded rules match a 1200 sqm urban plot on an 18m road.
	s.ElementsMatch([]string{"RIV-FSI-1", "RIV-COV-1"}, []string(report.RulesApplied))
	s.Contains(report.Reasoning, "RIV-FSI-1 allows FSI 2.5")

	// No policy artifact is installed: degraded fallback.
	s.True(report.Degraded)
	s.Equal(models.ActionLowFSI, report.ChosenAction)
	s.Equal("Low FSI", report.ActionLabel)
	s.InDelta(policy.FallbackConfidence, report.RawConfidence, 1e-9)
	s.Equal(models.ConfidenceLow, report.ConfidenceLevel)
}

func (s *HandlersSuite) TestRunCaseEmptyMatchIsValid() {
	resp := s.postJSON("/api/run_case", RunCaseRequest{
		CaseID: "case-empty", City: "Atlantis", PlotSize: 100, Location: "rural", RoadWidth: 5,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var report models.CaseReport
	s.decode(resp, &report)
	s.Empty(report.RulesApplied)
	s.Contains(report.Reasoning, "No specific compliance rules found")
}

func (s *HandlersSuite) TestRunCaseRequiresCity() {
	resp := s.postJSON("/api/run_case", RunCaseRequest{CaseID: "case-x"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlersSuite) TestGetCaseRoundTrip() {
	s.runCase("case-1")

	resp := s.get("/api/cases/case-1")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var report models.CaseReport
	s.decode(resp, &report)
	s.Equal("case-1", report.CaseID)

	resp = s.get("/api/cases/missing")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlersSuite) TestProjectCases() {
	s.runCase("case-1")
	s.runCase("case-2")

	resp := s.get("/api/projects/proj-1/cases")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		CaseCount int                 `json:"case_count"`
		Cases     []models.CaseReport `json:"cases"`
	}
	s.decode(resp, &body)
	s.Equal(2, body.CaseCount)
}

func (s *HandlersSuite) TestFeedbackUpdatesSegment() {
	s.runCase("case-1")

	resp := s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "up"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var result models.FeedbackResult
	s.decode(resp, &result)

	s.True(result.WeightsUpdated)
	s.Equal("Riverton", result.City)
	s.InDelta(1.0, result.ApprovalRate, 1e-9)
	s.InDelta(1.10, result.Multiplier, 1e-9)
	// Two matched facts infer the medium action.
	s.InDelta(1.05, result.ActionWeights[models.ActionMediumFSI], 1e-9)
	s.NotEmpty(result.AuditTrail)

	// Statistics reflect the event.
	resp = s.get("/api/cities/Riverton/stats")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var stats models.CityStatistics
	s.decode(resp, &stats)
	s.Equal(1, stats.TotalCases)
	s.Equal(models.SegmentLearning, stats.Status)
}

func (s *HandlersSuite) TestFeedbackValidation() {
	resp := s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "sideways"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = s.postJSON("/api/feedback", FeedbackRequest{Feedback: "up"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Feedback for a case that was never run has no report to anchor to.
	resp = s.postJSON("/api/feedback", FeedbackRequest{CaseID: "ghost", Feedback: "up"})
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *HandlersSuite) TestFeedbackHistoryForCase() {
	s.runCase("case-1")
	resp := s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "up"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "down"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.get("/api/feedback/case-1")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Count  int                    `json:"count"`
		Events []models.FeedbackEvent `json:"events"`
	}
	s.decode(resp, &body)
	s.Equal(2, body.Count)
	s.Equal(models.FeedbackApprove, body.Events[0].Polarity)
	s.Equal(models.FeedbackReject, body.Events[1].Polarity)
}

func (s *HandlersSuite) TestFeedbackSummary() {
	s.runCase("case-1")
	resp := s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "up"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.get("/api/feedback/summary")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var summary models.FeedbackSummary
	s.decode(resp, &summary)
	s.Equal(1, summary.TotalFeedback)
	s.Equal(1, summary.TotalPositive)
	s.InDelta(1.0, summary.OverallApprovalRate, 1e-9)
	s.Len(summary.RecentEvents, 1)
}

func (s *HandlersSuite) TestRulesForCity() {
	resp := s.get("/api/rules/riverton")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		RuleCount int           `json:"rule_count"`
		Rules     []models.Rule `json:"rules"`
	}
	s.decode(resp, &body)
	s.Equal(2, body.RuleCount)

	resp = s.get("/api/rules/atlantis")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &body)
	s.Zero(body.RuleCount)
}

func (s *HandlersSuite) TestCityStatsUnseen() {
	resp := s.get("/api/cities/Atlantis/stats")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var stats models.CityStatistics
	s.decode(resp, &stats)
	s.Equal(models.SegmentUnseen, stats.Status)
	s.Zero(stats.TotalCases)
}

func (s *HandlersSuite) TestConfidenceAdjustsAfterFeedback() {
	// Install a trained artifact so scoring is not degraded.
	trainer := policy.NewTrainer(policy.TrainerConfig{Episodes: 300, Epochs: 20, LearningRate: 0.5, Seed: 3},
		func(_ string, plot float64, locCode int, road float64, action models.Action) float64 {
			preferred := adaptive.OracleAction(plot, locCode, road)
			return adaptive.OracleReward(action, preferred)
		})
	s.svc.scorer.Install(trainer.Train([]string{"Riverton"}))

	first := s.runCase("case-1")
	s.False(first.Degraded)

	// One approval pushes Riverton into the boost band.
	resp := s.postJSON("/api/feedback", FeedbackRequest{CaseID: "case-1", Feedback: "up"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	second := s.runCase("case-1")
	expected := second.RawConfidence * 1.10
	if expected > 1.0 {
		expected = 1.0
	}
	s.InDelta(expected, second.AdjustedConfidence, 1e-9)
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}
