package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConditionSuite is a test suite for condition parsing and evaluation.
type ConditionSuite struct {
	suite.Suite
}

func TestConditionSuite(t *testing.T) {
	suite.Run(t, new(ConditionSuite))
}

func (s *ConditionSuite) parse(doc string) ConditionSet {
	var raw map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal([]byte(doc), &raw))
	set, err := ParseConditions(raw)
	s.Require().NoError(err)
	return set
}

func (s *ConditionSuite) TestParse_RangeCondition() {
	set := s.parse(`{"road_width_m": {"min": 9, "max": 12}}`)

	cond, ok := set[ConditionKeyRoadWidth]
	s.Require().True(ok)
	s.Equal(ConditionRange, cond.Kind)
	s.InDelta(9.0, cond.Min, 1e-9)
	s.InDelta(12.0, cond.Max, 1e-9)
	s.False(cond.IncludeMax, "road-width bands are half-open")
}

func (s *ConditionSuite) TestParse_PlotAreaClosesUpperBound() {
	set := s.parse(`{"plot_area_sqm": {"min": 0, "max": 1000}}`)

	cond := set[ConditionKeyPlotArea]
	s.True(cond.IncludeMax, "plot-area bands include the upper bound")
}

func (s *ConditionSuite) TestParse_CategoricalList() {
	set := s.parse(`{"location": ["urban", "suburban"]}`)

	cond := set[ConditionKeyLocation]
	s.Equal(ConditionCategorical, cond.Kind)
	s.Equal([]string{"urban", "suburban"}, cond.Values)
}

func (s *ConditionSuite) TestParse_CategoricalScalar() {
	set := s.parse(`{"location": "rural"}`)

	cond := set[ConditionKeyLocation]
	s.Equal(ConditionCategorical, cond.Kind)
	s.Equal([]string{"rural"}, cond.Values)
}

func (s *ConditionSuite) TestParse_RejectsUnsupportedShape() {
	var raw map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal([]byte(`{"location": 42}`), &raw))

	_, err := ParseConditions(raw)
	s.Error(err)
}

func (s *ConditionSuite) TestMatchesNumber_HalfOpenBoundaries() {
	cond := Condition{Kind: ConditionRange, Min: 9, Max: 12}

	s.True(cond.MatchesNumber(9), "lower bound is always inclusive")
	s.True(cond.MatchesNumber(11.99))
	s.False(cond.MatchesNumber(12), "half-open family excludes the upper bound")
}

func (s *ConditionSuite) TestMatchesNumber_ClosedBoundaries() {
	cond := Condition{Kind: ConditionRange, Min: 0, Max: 1000, IncludeMax: true}

	s.True(cond.MatchesNumber(0))
	s.True(cond.MatchesNumber(1000), "closed family includes the upper bound")
	s.False(cond.MatchesNumber(1000.01))
}

func (s *ConditionSuite) TestMatchesText_Membership() {
	cond := Condition{Kind: ConditionCategorical, Values: []string{"urban", "suburban"}}

	s.True(cond.MatchesText("urban"))
	s.False(cond.MatchesText("rural"))
}

func (s *ConditionSuite) TestScanValue_RoundTrip() {
	set := s.parse(`{"plot_area_sqm": {"min": 500, "max": 2000}, "location": ["urban"]}`)

	val, err := set.Value()
	s.Require().NoError(err)

	var restored ConditionSet
	s.Require().NoError(restored.Scan(val))
	s.Equal(set[ConditionKeyPlotArea], restored[ConditionKeyPlotArea])
	s.Equal(set[ConditionKeyLocation], restored[ConditionKeyLocation])
}

func (s *ConditionSuite) TestConfidenceLevels() {
	s.Equal(ConfidenceHigh, ConfidenceLevelFor(0.85))
	s.Equal(ConfidenceModerate, ConfidenceLevelFor(0.65))
	s.Equal(ConfidenceModerate, ConfidenceLevelFor(0.84))
	s.Equal(ConfidenceLow, ConfidenceLevelFor(0.64))
}
