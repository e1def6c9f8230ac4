package models

// ParamValue is a single numeric-or-categorical case parameter.
type ParamValue struct {
	Number float64
	Text   string
	IsText bool
}

// NumberParam builds a numeric parameter value.
func NumberParam(v float64) ParamValue { return ParamValue{Number: v} }

// TextParam builds a categorical parameter value.
func TextParam(v string) ParamValue { return ParamValue{Text: v, IsText: true} }

// CaseParameters is the parameter set submitted with a compliance case.
// The three named fields mirror the rule-pack condition families; Extra keeps
// the set extensible without touching the matcher.
type CaseParameters struct {
	PlotSize  float64 `json:"plot_size"`
	Location  string  `json:"location"`
	RoadWidth float64 `json:"road_width"`

	Extra map[string]ParamValue `json:"-"`
}

// Values flattens the parameters into condition-key space. Only keys present
// here participate in matching; a rule that constrains an absent key is not
// excluded by that key.
func (p CaseParameters) Values() map[string]ParamValue {
	out := make(map[string]ParamValue, 3+len(p.Extra))
	out[ConditionKeyPlotArea] = NumberParam(p.PlotSize)
	out[ConditionKeyRoadWidth] = NumberParam(p.RoadWidth)
	if p.Location != "" {
		out[ConditionKeyLocation] = TextParam(p.Location)
	}
	for k, v := range p.Extra {
		out[k] = v
	}
	return out
}

// CaseInput is a single compliance case submission. Cases are ephemeral:
// constructed per request and never persisted by the core.
type CaseInput struct {
	ProjectID  string         `json:"project_id"`
	CaseID     string         `json:"case_id"`
	City       string         `json:"city"`
	Parameters CaseParameters `json:"parameters"`
}

// LocationCodes enumerates the known location categories for feature
// encoding. Unknown locations encode as urban (code 0), matching the
// serving-path default.
var LocationCodes = map[string]int{
	"urban":    0,
	"suburban": 1,
	"rural":    2,
}

// LocationCode returns the enumerated code for a location category.
func LocationCode(location string) int {
	if code, ok := LocationCodes[location]; ok {
		return code
	}
	return 0
}
