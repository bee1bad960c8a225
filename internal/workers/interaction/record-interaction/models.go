package recordinteraction

import "trade-match-engine/internal/models"

type Action string

const (
	ActionSave          Action = "save"
	ActionApplyClick    Action = "apply_click"
	ActionApplied       Action = "applied"
	ActionNotInterested Action = "not_interested"
	ActionNotes         Action = "notes"
)

type Input struct {
	CandidateID string `json:"candidateId"`
	JobID       string `json:"jobId"`
	Action      Action `json:"action"`
	Notes       string `json:"notes,omitempty"`
}

type Output struct {
	InteractionID     string                   `json:"interactionId"`
	InteractionStatus models.InteractionStatus `json:"interactionStatus"`
	Interaction       *models.Interaction      `json:"interaction"`
}

const inputSchema = `{
	"type": "object",
	"required": ["candidateId", "jobId", "action"],
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1},
		"action": {"type": "string", "enum": ["save", "apply_click", "applied", "not_interested", "notes"]},
		"notes": {"type": "string", "maxLength": 5000}
	}
}`
