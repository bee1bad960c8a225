package calculatematchscore

import "trade-match-engine/internal/models"

// Input accepts either inline documents or ids to look up. Inline wins.
type Input struct {
	CandidateID string                   `json:"candidateId,omitempty"`
	JobID       string                   `json:"jobId,omitempty"`
	Candidate   *models.CandidateProfile `json:"candidate,omitempty"`
	Job         *models.JobPosting       `json:"job,omitempty"`
}

type Output struct {
	MatchScore    int                  `json:"matchScore"`
	Band          string               `json:"matchBand"`
	Reason        string               `json:"matchReason"`
	MissingSkills []string             `json:"missingSkills"`
	Breakdown     []models.FactorScore `json:"matchBreakdown"`
	Cached        bool                 `json:"matchCached"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1},
		"candidate": {"type": "object"},
		"job": {"type": "object"}
	},
	"allOf": [
		{"anyOf": [{"required": ["candidateId"]}, {"required": ["candidate"]}]},
		{"anyOf": [{"required": ["jobId"]}, {"required": ["job"]}]}
	]
}`

func outputFrom(r models.MatchResult, cached bool) *Output {
	missing := []string(r.MissingSkills)
	if missing == nil {
		missing = []string{}
	}
	return &Output{
		MatchScore:    r.Score,
		Band:          r.Band,
		Reason:        r.Reason,
		MissingSkills: missing,
		Breakdown:     r.Breakdown,
		Cached:        cached,
	}
}
