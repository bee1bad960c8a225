package createapplicationrecord

import "trade-match-engine/internal/models"

type Input struct {
	CandidateID  string `json:"candidateId"`
	JobID        string `json:"jobId"`
	CoverMessage string `json:"coverMessage,omitempty"`
	MatchScore   *int   `json:"matchScore,omitempty"`
}

func (i Input) request() models.NewApplication {
	return models.NewApplication{
		CandidateID:  i.CandidateID,
		JobID:        i.JobID,
		CoverMessage: i.CoverMessage,
		MatchScore:   i.MatchScore,
	}
}

type Output struct {
	ApplicationID     string                   `json:"applicationId"`
	ApplicationStatus models.ApplicationStatus `json:"applicationStatus"`
	CreatedAt         string                   `json:"applicationCreatedAt"`
}

const inputSchema = `{
	"type": "object",
	"required": ["candidateId", "jobId"],
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1},
		"coverMessage": {"type": "string", "maxLength": 5000},
		"matchScore": {"type": ["integer", "null"], "minimum": 0, "maximum": 100}
	}
}`
