// internal/models/notification.go
package models

import "time"

// StatusNotification asks the dispatcher to tell a candidate about an
// application status change. RejectionReason is set only for rejected.
type StatusNotification struct {
	ID              string            `json:"id"`
	ApplicationID   string            `json:"applicationId"`
	CandidateID     string            `json:"candidateId"`
	JobID           string            `json:"jobId"`
	Status          ApplicationStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	OccurredAt      time.Time         `json:"occurredAt"`
}

// Contact is where a candidate can be reached.
type Contact struct {
	CandidateID string `json:"candidateId"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Delivery channels and outcomes.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelTopic = "topic"

	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryDisabled = "disabled"
	DeliveryDropped  = "dropped"
)

// DeliveryReport summarizes one dispatch.
type DeliveryReport struct {
	NotificationID string          `json:"notificationId"`
	Status         string          `json:"status"`
	Channels       map[string]bool `json:"channels,omitempty"`
	SentAt         string          `json:"sentAt"`
}
