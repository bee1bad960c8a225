// internal/workers/application/send-notification/models.go
package sendnotification

import "trade-match-engine/internal/models"

// Input names the application; status and candidate default to what is
// stored on it.
type Input struct {
	NotificationID  string                   `json:"notificationId,omitempty"`
	ApplicationID   string                   `json:"applicationId"`
	Status          models.ApplicationStatus `json:"status,omitempty"`
	RejectionReason string                   `json:"rejectionReason,omitempty"`
}

type Output struct {
	NotificationID string          `json:"notificationId"`
	Status         string          `json:"notificationStatus"` // sent, failed, disabled
	Channels       map[string]bool `json:"notificationChannels"`
	SentAt         string          `json:"sentAt"` // ISO 8601
}

const inputSchema = `{
	"type": "object",
	"required": ["applicationId"],
	"properties": {
		"notificationId": {"type": "string"},
		"applicationId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["reviewing", "interview", "offer", "hired", "rejected"]},
		"rejectionReason": {"type": "string", "maxLength": 1000}
	}
}`
