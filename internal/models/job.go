// internal/models/job.go
package models

import (
	"time"

	"trade-match-engine/internal/engine/attributes"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Job sources. First-party postings go through the application lifecycle,
// everything else through the interaction lifecycle.
const (
	SourceFirstParty = "first_party"
)

// JobRequirement is the scorable part of a posting. MinExperience 0 means
// no minimum.
type JobRequirement struct {
	MinExperience          float64           `json:"minExperience"`
	RequiredProcesses      attributes.TagSet `json:"requiredProcesses,omitempty"`
	RequiredPositions      attributes.TagSet `json:"requiredPositions,omitempty"`
	RequiredCertifications attributes.TagSet `json:"requiredCertifications,omitempty"`
}

// IsEmpty is true when no factor applies.
func (r JobRequirement) IsEmpty() bool {
	return r.MinExperience <= 0 &&
		r.RequiredProcesses.Len() == 0 &&
		r.RequiredPositions.Len() == 0 &&
		r.RequiredCertifications.Len() == 0
}

// JobPosting is a first-party or aggregated job as the engine sees it.
type JobPosting struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Company     string               `json:"company"`
	Location    string               `json:"location,omitempty"`
	Source      string               `json:"source,omitempty"`
	ExternalURL string               `json:"externalUrl,omitempty"`
	PostedAt    *time.Time           `json:"postedAt,omitempty"`
	PayDisplay  string               `json:"payDisplay,omitempty"`
	Pay         *attributes.PayRange `json:"pay,omitempty"`
	Active      bool                 `json:"active"`

	JobRequirement
}

// IsFirstParty reports whether the posting uses the formal application flow.
func (j JobPosting) IsFirstParty() bool {
	return j.Source == "" || j.Source == SourceFirstParty
}

// PayMidpoint prefers the numeric range and falls back to the display text.
func (j JobPosting) PayMidpoint() (float64, bool) {
	if j.Pay != nil {
		if mid, ok := j.Pay.Midpoint(); ok {
			return mid, true
		}
	}
	return attributes.ParsePayMidpoint(j.PayDisplay)
}

func (j JobPosting) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.ID, validation.Required),
		validation.Field(&j.Title, validation.Required, validation.Length(1, 300)),
	)
}

// JobQuery selects postings from the job source. Empty fields match all.
type JobQuery struct {
	Query      string `json:"query,omitempty"`
	Location   string `json:"location,omitempty"`
	Source     string `json:"source,omitempty"`
	ActiveOnly bool   `json:"activeOnly,omitempty"`
	Size       int    `json:"size,omitempty"`
}
