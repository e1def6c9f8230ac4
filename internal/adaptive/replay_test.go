package adaptive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

type ReplaySuite struct {
	suite.Suite

	ctx        context.Context
	table      *Table
	segments   *memorySegmentStore
	events     *memoryFeedbackLog
	controller *Controller
	replayer   *Replayer
}

func (s *ReplaySuite) SetupTest() {
	s.ctx = context.Background()
	s.table = NewTable()
	s.segments = newMemorySegmentStore()
	s.events = newMemoryFeedbackLog()
	s.controller = NewController(s.table, s.segments, s.events, time.Second)
	s.replayer = NewReplayer(s.table, s.segments, s.events)
}

func (s *ReplaySuite) seedHistory(n int) {
	cities := []string{"Riverton", "Lakewood", "Hillsboro"}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		polarity := models.FeedbackApprove
		if i%3 == 0 {
			polarity = models.FeedbackReject
		}
		_, err := s.controller.Ingest(s.ctx, models.FeedbackEvent{
			ID:        fmt.Sprintf("evt-%03d", i),
			CaseID:    fmt.Sprintf("case-%03d", i),
			City:      cities[i%len(cities)],
			Polarity:  polarity,
			Action:    models.Action(i % models.NumActions),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}
}

// Replaying the history must land on exactly the table the live ingest
// path built incrementally.
func (s *ReplaySuite) TestRebuildMatchesLiveTable() {
	s.seedHistory(30)
	live := s.table.Snapshot()

	rebuilt, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)
	s.Empty(Diverges(live, rebuilt))
}

func (s *ReplaySuite) TestRebuildIsIdempotent() {
	s.seedHistory(17)

	first, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)
	second, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)
	s.Empty(Diverges(first, second))
}

func (s *ReplaySuite) TestRebuildResetsDriftedSegment() {
	s.seedHistory(9)

	// Simulate drift: hand-edit a live weight out from under the history.
	err := s.table.withSegment("Riverton", func(seg *segment) error {
		seg.weights.ActionWeights[models.ActionLowFSI] = 1.9
		return nil
	})
	s.Require().NoError(err)

	rebuilt, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)

	live := s.table.Snapshot()
	s.Empty(Diverges(live, rebuilt))
	s.NotEqual(1.9, live["Riverton"].ActionWeights[models.ActionLowFSI])
}

func (s *ReplaySuite) TestRebuildPersistsReplacement() {
	s.seedHistory(6)
	_, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)

	persisted, err := s.segments.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(Diverges(s.table.Snapshot(), persisted))
}

func (s *ReplaySuite) TestRebuildStoreFailureLeavesTableUntouched() {
	s.seedHistory(6)
	before := s.table.Snapshot()

	s.segments.failing = true
	_, err := s.replayer.Rebuild(s.ctx)
	s.Require().ErrorIs(err, ErrPersistenceWrite)
	s.Empty(Diverges(before, s.table.Snapshot()))
}

func (s *ReplaySuite) TestKnownCityWithoutEventsResetsToDefaults() {
	s.table.ReplaceAll(map[string]*models.SegmentWeights{
		"Ghosttown": {
			City:          "Ghosttown",
			BaseReward:    1.4,
			ActionWeights: models.ActionWeightVector{1.2, 1.0, 0.8},
			PositiveCount: 9,
			TotalCases:    10,
		},
	})

	rebuilt, err := s.replayer.Rebuild(s.ctx)
	s.Require().NoError(err)

	w, ok := rebuilt["Ghosttown"]
	s.Require().True(ok)
	s.Zero(w.TotalCases)
	s.InDelta(models.DefaultBaseReward, w.BaseReward, 1e-9)
	for _, v := range w.ActionWeights {
		s.InDelta(1.0, v, 1e-9)
	}
}

func TestReplaySuite(t *testing.T) {
	suite.Run(t, new(ReplaySuite))
}

func TestRebuildFromEventsOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	shuffled := []models.FeedbackEvent{
		{ID: "c", City: "Riverton", Polarity: models.FeedbackReject, Action: models.ActionHighFSI, Timestamp: base.Add(2 * time.Minute)},
		{ID: "a", City: "Riverton", Polarity: models.FeedbackApprove, Action: models.ActionHighFSI, Timestamp: base},
		{ID: "b", City: "Riverton", Polarity: models.FeedbackApprove, Action: models.ActionHighFSI, Timestamp: base.Add(time.Minute)},
	}
	ordered := []models.FeedbackEvent{shuffled[1], shuffled[2], shuffled[0]}

	fromShuffled := RebuildFromEvents(nil, shuffled)
	fromOrdered := RebuildFromEvents(nil, ordered)
	assert.Empty(t, Diverges(fromOrdered, fromShuffled))

	w := fromShuffled["Riverton"]
	require.NotNil(t, w)
	assert.Equal(t, 3, w.TotalCases)
	assert.InDelta(t, 1.07, w.ActionWeights[models.ActionHighFSI], 1e-9)
	assert.InDelta(t, 0.5+2.0/3.0, w.BaseReward, 1e-9)
}

func TestDivergesReportsDifferences(t *testing.T) {
	a := map[string]*models.SegmentWeights{"Riverton": models.NewSegmentWeights("Riverton")}
	b := map[string]*models.SegmentWeights{"Riverton": models.NewSegmentWeights("Riverton")}
	assert.Empty(t, Diverges(a, b))

	b["Riverton"].ActionWeights[0] = 1.05
	assert.NotEmpty(t, Diverges(a, b))

	b["Riverton"].ActionWeights[0] = 1.0
	b["Riverton"].TotalCases = 1
	assert.NotEmpty(t, Diverges(a, b))

	delete(b, "Riverton")
	assert.NotEmpty(t, Diverges(a, b))
}
