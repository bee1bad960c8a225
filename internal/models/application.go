// internal/models/application.go
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ApplicationStatus string

const (
	ApplicationNew       ApplicationStatus = "new"
	ApplicationReviewing ApplicationStatus = "reviewing"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationOffer     ApplicationStatus = "offer"
	ApplicationHired     ApplicationStatus = "hired"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// EmployerStatuses are the legal targets of an employer transition.
var EmployerStatuses = []ApplicationStatus{
	ApplicationReviewing,
	ApplicationInterview,
	ApplicationOffer,
	ApplicationHired,
	ApplicationRejected,
}

// IsEmployerTarget reports whether s may be set by an employer transition.
func (s ApplicationStatus) IsEmployerTarget() bool {
	for _, t := range EmployerStatuses {
		if s == t {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) Valid() bool {
	return s == ApplicationNew || s.IsEmployerTarget()
}

// Application is the formal record for a first-party posting, one per
// (CandidateID, JobID).
type Application struct {
	ID              string            `json:"id"`
	CandidateID     string            `json:"candidateId"`
	JobID           string            `json:"jobId"`
	Status          ApplicationStatus `json:"status"`
	MatchScore      *int              `json:"matchScore,omitempty"`
	CoverMessage    string            `json:"coverMessage,omitempty"`
	EmployerNotes   string            `json:"employerNotes,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Version         int               `json:"version"`
}

// NewApplication is the candidate-side submission.
type NewApplication struct {
	CandidateID  string `json:"candidateId"`
	JobID        string `json:"jobId"`
	CoverMessage string `json:"coverMessage,omitempty"`
	MatchScore   *int   `json:"matchScore,omitempty"`
}

func (a NewApplication) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.CandidateID, validation.Required),
		validation.Field(&a.JobID, validation.Required),
		validation.Field(&a.CoverMessage, validation.Length(0, 5000)),
		validation.Field(&a.MatchScore, validation.Min(0), validation.Max(100)),
	)
}

// StatusChange is an employer transition request.
type StatusChange struct {
	ApplicationID   string            `json:"applicationId"`
	Status          ApplicationStatus `json:"status"`
	EmployerNotes   string            `json:"employerNotes,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
}

func (c StatusChange) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ApplicationID, validation.Required),
		validation.Field(&c.Status, validation.Required),
		validation.Field(&c.RejectionReason, validation.Length(0, 1000)),
	)
}
