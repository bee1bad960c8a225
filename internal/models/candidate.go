// internal/models/candidate.go
package models

import (
	"math"

	"trade-match-engine/internal/engine/attributes"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CandidateProfile is read-only to the engine.
type CandidateProfile struct {
	ID              string                     `json:"id"`
	YearsExperience float64                    `json:"yearsExperience"`
	Processes       attributes.TagSet          `json:"processes,omitempty"`
	Positions       attributes.TagSet          `json:"positions,omitempty"`
	Certifications  []attributes.Certification `json:"certifications,omitempty"`
	Location        string                     `json:"location,omitempty"`
	DesiredPay      *attributes.PayRange       `json:"desiredPay,omitempty"`
}

// VerifiedCertifications returns the certification tags that count for matching.
func (c CandidateProfile) VerifiedCertifications() attributes.TagSet {
	return attributes.VerifiedCertifications(c.Certifications)
}

// IsEmpty reports a profile with no scorable data.
func (c CandidateProfile) IsEmpty() bool {
	return c.YearsExperience == 0 && len(c.Processes) == 0 &&
		len(c.Positions) == 0 && len(c.Certifications) == 0
}

func (c CandidateProfile) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.YearsExperience, validation.By(finiteNonNegative)),
	)
}

func finiteNonNegative(value interface{}) error {
	v, _ := value.(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return validation.NewError("validation_finite_non_negative", "must be a finite number >= 0")
	}
	return nil
}
