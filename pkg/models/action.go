// Package models contains domain models for the rule intelligence platform.
package models

import "fmt"

// Action is a discrete development-intensity tier the policy can recommend.
type Action int

const (
	// ActionLowFSI recommends the lowest floor-space-index tier (FSI < 1.5).
	ActionLowFSI Action = iota
	// ActionMediumFSI recommends the middle tier (FSI 1.5 - 2.5).
	ActionMediumFSI
	// ActionHighFSI recommends the highest tier (FSI > 2.5).
	ActionHighFSI
)

// NumActions is the size of the discrete action space.
const NumActions = 3

// String returns the human-readable label for an action.
func (a Action) String() string {
	switch a {
	case ActionLowFSI:
		return "Low FSI"
	case ActionMediumFSI:
		return "Medium FSI"
	case ActionHighFSI:
		return "High FSI"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Valid reports whether the action index is within the action space.
func (a Action) Valid() bool {
	return a >= 0 && int(a) < NumActions
}

// ConfidenceLevel classifies a confidence score for presentation.
type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "High"
	ConfidenceModerate ConfidenceLevel = "Moderate"
	ConfidenceLow      ConfidenceLevel = "Low"
)

// ConfidenceLevelFor maps a confidence score to its presentation level.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.85:
		return ConfidenceHigh
	case score >= 0.65:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}
