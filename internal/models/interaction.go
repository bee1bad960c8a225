// internal/models/interaction.go
package models

import "time"

type InteractionStatus string

const (
	InteractionNew           InteractionStatus = "new"
	InteractionSaved         InteractionStatus = "saved"
	InteractionClickedApply  InteractionStatus = "clicked_apply"
	InteractionApplied       InteractionStatus = "applied"
	InteractionNotInterested InteractionStatus = "not_interested"
)

// Rank orders statuses by progress; not_interested sits outside the ladder.
func (s InteractionStatus) Rank() int {
	switch s {
	case InteractionNew:
		return 0
	case InteractionSaved:
		return 1
	case InteractionClickedApply:
		return 2
	case InteractionApplied:
		return 3
	default:
		return -1
	}
}

func (s InteractionStatus) Valid() bool {
	return s == InteractionNotInterested || s.Rank() >= 0
}

// Interaction is the informal engagement record for an aggregated posting,
// one per (CandidateID, JobID).
type Interaction struct {
	ID          string            `json:"id"`
	CandidateID string            `json:"candidateId"`
	JobID       string            `json:"jobId"`
	Status      InteractionStatus `json:"status"`
	SavedAt     *time.Time        `json:"savedAt,omitempty"`
	ClickedAt   *time.Time        `json:"clickedAt,omitempty"`
	AppliedAt   *time.Time        `json:"appliedAt,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`

	// Version increases by one on every write; zero means not stored yet.
	Version int `json:"version"`
}
