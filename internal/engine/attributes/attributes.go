// internal/engine/attributes/attributes.go
package attributes

import (
	"strings"
)

// CertVerified is the only certification status that counts toward matching.
const CertVerified = "verified"

// TagSet is an ordered set of canonical tags (trimmed, upper-case, unique).
// Values decoded from JSON may not be canonical; every helper below
// canonicalizes its inputs before comparing.
type TagSet []string

// Certification is a candidate certification with its verification status.
type Certification struct {
	Tag    string `json:"tag"`
	Status string `json:"status"`
}

// NewTagSet canonicalizes tags, dropping empties and duplicates while keeping
// first-seen order.
func NewTagSet(tags ...string) TagSet {
	out := make(TagSet, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		c := canonical(t)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func canonical(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// Len returns the number of distinct canonical tags.
func (s TagSet) Len() int {
	return len(NewTagSet(s...))
}

// Contains reports whether tag is in the set.
func (s TagSet) Contains(tag string) bool {
	c := canonical(tag)
	for _, t := range s {
		if canonical(t) == c {
			return true
		}
	}
	return false
}

func (s TagSet) index() map[string]struct{} {
	idx := make(map[string]struct{}, len(s))
	for _, t := range s {
		if c := canonical(t); c != "" {
			idx[c] = struct{}{}
		}
	}
	return idx
}

// Overlap returns the required tags the candidate holds and how many there are.
func Overlap(required, held TagSet) (TagSet, int) {
	req := NewTagSet(required...)
	have := held.index()

	matched := make(TagSet, 0, len(req))
	for _, t := range req {
		if _, ok := have[t]; ok {
			matched = append(matched, t)
		}
	}
	return matched, len(matched)
}

// Missing returns the required tags not held, in required order.
func Missing(required, held TagSet) TagSet {
	req := NewTagSet(required...)
	have := held.index()

	missing := make(TagSet, 0, len(req))
	for _, t := range req {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// HasAll is true when every required tag is held. An empty requirement is
// trivially satisfied.
func HasAll(required, held TagSet) bool {
	return len(Missing(required, held)) == 0
}

// HasAny is true when at least one required tag is held.
func HasAny(required, held TagSet) bool {
	_, n := Overlap(required, held)
	return n > 0
}

// VerifiedCertifications returns the tags of certifications whose status is
// "verified" (case-insensitive).
func VerifiedCertifications(certs []Certification) TagSet {
	tags := make([]string, 0, len(certs))
	for _, c := range certs {
		if strings.EqualFold(strings.TrimSpace(c.Status), CertVerified) {
			tags = append(tags, c.Tag)
		}
	}
	return NewTagSet(tags...)
}
