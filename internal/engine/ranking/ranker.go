// internal/engine/ranking/ranker.go
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/models"
)

// DefaultGoodMatchThreshold is the cut for GoodMatchesOnly.
const DefaultGoodMatchThreshold = 70

type SortKey string

const (
	SortNone  SortKey = ""
	SortMatch SortKey = "match"
	SortDate  SortKey = "date"
	SortPay   SortKey = "pay"
)

// Row is one job merged with the candidate-specific state the caller loaded.
type Row struct {
	Job         models.JobPosting   `json:"job"`
	Match       *models.MatchResult `json:"match,omitempty"`
	External    *models.MatchResult `json:"external,omitempty"`
	Interaction *models.Interaction `json:"interaction,omitempty"`
	Application *models.Application `json:"application,omitempty"`
}

// DisplayScore prefers the external AI score over the internal one.
func (r Row) DisplayScore() (int, bool) {
	if r.External != nil {
		return r.External.Score, true
	}
	if r.Match != nil {
		return r.Match.Score, true
	}
	return 0, false
}

// DisplayResult returns the MatchResult the display score came from.
func (r Row) DisplayResult() *models.MatchResult {
	if r.External != nil {
		return r.External
	}
	return r.Match
}

// FilterSpec is AND-combined; zero values disable a filter.
type FilterSpec struct {
	Query              string  `json:"query,omitempty"`
	Location           string  `json:"location,omitempty"`
	Source             string  `json:"source,omitempty"`
	GoodMatchesOnly    bool    `json:"goodMatchesOnly,omitempty"`
	GoodMatchThreshold int     `json:"goodMatchThreshold,omitempty"`
	HideDismissed      bool    `json:"hideDismissed,omitempty"`
	SortBy             SortKey `json:"sortBy,omitempty"`
	Limit              int     `json:"limit,omitempty"`
}

// Validate rejects unknown sort keys and bad numbers.
func (f FilterSpec) Validate() error {
	switch f.SortBy {
	case SortNone, SortMatch, SortDate, SortPay:
	default:
		return errors.NewInvalidFilterFormatError(fmt.Sprintf("unknown sortBy %q", f.SortBy))
	}
	if f.Limit < 0 {
		return errors.NewInvalidFilterFormatError("limit must be >= 0")
	}
	if f.GoodMatchThreshold < 0 || f.GoodMatchThreshold > 100 {
		return errors.NewInvalidFilterFormatError("goodMatchThreshold must be within 0..100")
	}
	return nil
}

func (f FilterSpec) threshold() int {
	if f.GoodMatchThreshold > 0 {
		return f.GoodMatchThreshold
	}
	return DefaultGoodMatchThreshold
}

// Rank filters and orders rows. It never mutates rows and never panics;
// an unknown sort key keeps input order.
func Rank(rows []Row, spec FilterSpec) []Row {
	out := make([]Row, 0, len(rows))
	query := strings.ToLower(strings.TrimSpace(spec.Query))
	location := strings.ToLower(strings.TrimSpace(spec.Location))
	threshold := spec.threshold()

	for _, r := range rows {
		if query != "" && !matchesQuery(r.Job, query) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(r.Job.Location), location) {
			continue
		}
		if spec.Source != "" && r.Job.Source != spec.Source {
			continue
		}
		if spec.GoodMatchesOnly {
			score, ok := r.DisplayScore()
			if !ok || score < threshold {
				continue
			}
		}
		if spec.HideDismissed && r.Interaction != nil && r.Interaction.Status == models.InteractionNotInterested {
			continue
		}
		out = append(out, r)
	}

	switch spec.SortBy {
	case SortMatch:
		sort.SliceStable(out, func(i, j int) bool {
			return matchKey(out[i]) > matchKey(out[j])
		})
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			return dateKey(out[i]) > dateKey(out[j])
		})
	case SortPay:
		// parse once per row; display strings go through a regexp
		keyed := make([]payRow, len(out))
		for i, r := range out {
			keyed[i] = payRow{row: r, key: payKey(r)}
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			return keyed[i].key > keyed[j].key
		})
		for i := range keyed {
			out[i] = keyed[i].row
		}
	}

	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out
}

func matchesQuery(job models.JobPosting, q string) bool {
	return strings.Contains(strings.ToLower(job.Title), q) ||
		strings.Contains(strings.ToLower(job.Company), q) ||
		strings.Contains(strings.ToLower(job.Location), q)
}

// unscored rows sort as -1
func matchKey(r Row) int {
	if s, ok := r.DisplayScore(); ok {
		return s
	}
	return -1
}

// missing timestamps sort as the epoch
func dateKey(r Row) int64 {
	if r.Job.PostedAt == nil {
		return 0
	}
	return r.Job.PostedAt.Unix()
}

type payRow struct {
	row Row
	key float64
}

// unparsable pay sorts last
func payKey(r Row) float64 {
	if mid, ok := r.Job.PayMidpoint(); ok {
		return mid
	}
	return -1
}
