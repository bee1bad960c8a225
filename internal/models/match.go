// internal/models/match.go
package models

import "trade-match-engine/internal/engine/attributes"

// Score sources.
const (
	ScoreSourceInternal = "internal"
	ScoreSourceExternal = "external"
)

// FactorScore is one of the four scoring factors. Excluded factors do not
// count toward the denominator.
type FactorScore struct {
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Max      int    `json:"max"`
	Excluded bool   `json:"excluded"`
	Matched  int    `json:"matched,omitempty"`
	Required int    `json:"required,omitempty"`
}

// MatchResult is derived data; it is cached but never the source of truth.
type MatchResult struct {
	CandidateID   string            `json:"candidateId"`
	JobID         string            `json:"jobId"`
	Score         int               `json:"score"`
	Band          string            `json:"band,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	MissingSkills attributes.TagSet `json:"missingSkills,omitempty"`
	Breakdown     []FactorScore     `json:"breakdown,omitempty"`
	Source        string            `json:"source"`
}
