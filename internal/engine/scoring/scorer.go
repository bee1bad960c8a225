// internal/engine/scoring/scorer.go
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// FactorWeight is the maximum points per factor.
	FactorWeight = 25
	// NeutralScore is returned when a job states no requirements at all.
	NeutralScore = 50
	// MaxExperienceYears is where +Inf experience is clamped to.
	MaxExperienceYears = 100

	defaultConcurrency = 8
)

// Factor names as they appear in breakdowns.
const (
	FactorExperience    = "experience"
	FactorProcess       = "process"
	FactorPosition      = "position"
	FactorCertification = "certification"
)

// Scorer computes deterministic match scores. It holds no mutable state
// and is safe for concurrent use.
type Scorer struct {
	logger      logger.Logger
	obs         *observability.Observability
	concurrency int
}

type Option func(*Scorer)

// WithConcurrency bounds ScoreAll's parallelism.
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Scorer) { s.obs = obs }
}

func New(log logger.Logger, opts ...Option) *Scorer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Scorer{
		logger:      log.WithFields(map[string]interface{}{"component": "scorer"}),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score rates candidate against job on four factors of 25 points each.
// Factors whose requirement is unset are excluded from the denominator; a
// job with no requirements scores NeutralScore.
func (s *Scorer) Score(candidate models.CandidateProfile, job models.JobPosting) (models.MatchResult, error) {
	years := s.clamp(candidate.YearsExperience, "years_experience", candidate.ID, job.ID)
	minYears := s.clamp(job.MinExperience, "min_experience", candidate.ID, job.ID)

	verified := candidate.VerifiedCertifications()

	factors := []models.FactorScore{
		experienceFactor(years, minYears),
		tagFactor(FactorProcess, job.RequiredProcesses, candidate.Processes),
		tagFactor(FactorPosition, job.RequiredPositions, candidate.Positions),
		tagFactor(FactorCertification, job.RequiredCertifications, verified),
	}

	sum, maxSum := 0, 0
	for _, f := range factors {
		if f.Excluded {
			continue
		}
		if f.Points < 0 || f.Points > f.Max {
			return models.MatchResult{}, errors.NewInvariantViolationError(
				fmt.Sprintf("factor %s scored %d outside [0,%d] for job %s", f.Name, f.Points, f.Max, job.ID))
		}
		sum += f.Points
		maxSum += f.Max
	}

	score := NeutralScore
	if maxSum > 0 {
		score = int(math.Round(float64(sum) / float64(maxSum) * 100))
	}
	if score < 0 || score > 100 {
		return models.MatchResult{}, errors.NewInvariantViolationError(
			fmt.Sprintf("score %d outside [0,100] for job %s", score, job.ID))
	}

	missing := make(attributes.TagSet, 0)
	missing = append(missing, attributes.Missing(job.RequiredProcesses, candidate.Processes)...)
	missing = append(missing, attributes.Missing(job.RequiredPositions, candidate.Positions)...)
	missing = append(missing, attributes.Missing(job.RequiredCertifications, verified)...)

	band := BandFor(score)
	metrics.MatchScores.WithLabelValues(string(band)).Observe(float64(score))

	return models.MatchResult{
		CandidateID:   candidate.ID,
		JobID:         job.ID,
		Score:         score,
		Band:          band.Label(),
		Reason:        reason(factors, missing),
		MissingSkills: missing,
		Breakdown:     factors,
		Source:        models.ScoreSourceInternal,
	}, nil
}

// ScoreAll scores jobs in parallel, returning results in job order.
func (s *Scorer) ScoreAll(ctx context.Context, candidate models.CandidateProfile, jobs []models.JobPosting) ([]models.MatchResult, error) {
	ctx, span := s.obs.StartSpan(ctx, "scoring.ScoreAll",
		attribute.String("candidate.id", candidate.ID),
		attribute.Int("jobs", len(jobs)),
	)
	defer span.End()

	results := make([]models.MatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Score(candidate, jobs[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}

// clamp replaces negative or non-finite input with the nearest valid value
// and logs it, so one bad record cannot sink a whole ranking pass.
func (s *Scorer) clamp(v float64, field, candidateID, jobID string) float64 {
	var clamped float64
	switch {
	case math.IsNaN(v):
		clamped = 0
	case math.IsInf(v, 1):
		clamped = MaxExperienceYears
	case v < 0:
		clamped = 0
	default:
		return v
	}

	metrics.MatchInputClamped.WithLabelValues(field).Inc()
	s.logger.Warn("clamped invalid scoring input", map[string]interface{}{
		"field":       field,
		"value":       fmt.Sprintf("%v", v),
		"clampedTo":   clamped,
		"candidateId": candidateID,
		"jobId":       jobID,
	})
	return clamped
}

func experienceFactor(years, minYears float64) models.FactorScore {
	f := models.FactorScore{Name: FactorExperience, Max: FactorWeight}
	if minYears == 0 {
		f.Excluded = true
		return f
	}
	if years >= minYears {
		f.Points = FactorWeight
		return f
	}
	pts := int(math.Floor(years / minYears * FactorWeight))
	if pts < 0 {
		pts = 0
	}
	f.Points = pts
	return f
}

func tagFactor(name string, required, held attributes.TagSet) models.FactorScore {
	f := models.FactorScore{Name: name, Max: FactorWeight}
	req := required.Len()
	if req == 0 {
		f.Excluded = true
		return f
	}
	_, matched := attributes.Overlap(required, held)
	f.Matched = matched
	f.Required = req
	f.Points = matched * FactorWeight / req
	return f
}

func reason(factors []models.FactorScore, missing attributes.TagSet) string {
	included, full := 0, 0
	for _, f := range factors {
		if f.Excluded {
			continue
		}
		included++
		if f.Points == f.Max {
			full++
		}
	}
	if included == 0 {
		return "No requirements listed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meets %d of %d requirement areas", full, included)
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(missing, ", "))
	}
	return b.String()
}
