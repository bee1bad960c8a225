package updateapplicationstatus

import "trade-match-engine/internal/models"

type Input struct {
	ApplicationID   string                   `json:"applicationId"`
	Status          models.ApplicationStatus `json:"status"`
	EmployerNotes   string                   `json:"employerNotes,omitempty"`
	RejectionReason string                   `json:"rejectionReason,omitempty"`
}

type Output struct {
	ApplicationID     string                   `json:"applicationId"`
	ApplicationStatus models.ApplicationStatus `json:"applicationStatus"`
	PreviousStatus    models.ApplicationStatus `json:"previousApplicationStatus"`
	Changed           bool                     `json:"applicationStatusChanged"`
}

const inputSchema = `{
	"type": "object",
	"required": ["applicationId", "status"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["new", "reviewing", "interview", "offer", "hired", "rejected"]},
		"employerNotes": {"type": "string", "maxLength": 5000},
		"rejectionReason": {"type": "string", "maxLength": 1000}
	}
}`
