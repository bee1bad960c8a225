// internal/engine/feed/builder.go
package feed

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/engine/ranking"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
)

const (
	// DefaultSize bounds how many postings are pulled from the job source.
	DefaultSize = 100
	// DefaultMatchSize is the larger pool pulled when the order or the
	// filter depends on scores, since search order says nothing about fit.
	DefaultMatchSize = 500
)

// ProfileSource returns ErrNotFound for unknown candidates.
type ProfileSource interface {
	GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error)
}

type JobSource interface {
	SearchJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, error)
}

// StateSource loads the candidate's lifecycle rows for a set of jobs.
type StateSource interface {
	ListInteractions(ctx context.Context, candidateID string, jobIDs []string) ([]models.Interaction, error)
	ListApplications(ctx context.Context, candidateID string, jobIDs []string) ([]models.Application, error)
}

// ExternalScores returns previously computed AI scores keyed by job id.
type ExternalScores interface {
	GetExternalScores(ctx context.Context, candidateID string, jobIDs []string) (map[string]models.MatchResult, error)
}

type Request struct {
	CandidateID string             `json:"candidateId"`
	Filter      ranking.FilterSpec `json:"filter"`
}

type Feed struct {
	CandidateID string        `json:"candidateId"`
	Rows        []ranking.Row `json:"rows"`
	Considered  int           `json:"considered"`
	Truncated   bool          `json:"truncated,omitempty"`
	Threshold   int           `json:"goodMatchThreshold"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// Builder assembles the ranked job feed for one candidate.
type Builder struct {
	profiles ProfileSource
	jobs     JobSource
	state    StateSource
	external ExternalScores
	scorer   *scoring.Scorer
	logger   logger.Logger
	obs      *observability.Observability
	size      int
	matchSize int
	good      int
}

type Option func(*Builder)

// WithExternalScores enables AI score lookups. Without it rows carry only
// the internal score.
func WithExternalScores(e ExternalScores) Option {
	return func(b *Builder) { b.external = e }
}

func WithSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithMatchSize sets the pool size for match sorts and good-match filters.
func WithMatchSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.matchSize = n
		}
	}
}

// WithGoodMatchThreshold sets the cut used when a request leaves
// GoodMatchThreshold at zero.
func WithGoodMatchThreshold(n int) Option {
	return func(b *Builder) {
		if n > 0 && n <= 100 {
			b.good = n
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(b *Builder) { b.obs = obs }
}

func NewBuilder(profiles ProfileSource, jobs JobSource, state StateSource, scorer *scoring.Scorer, log logger.Logger, opts ...Option) *Builder {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	b := &Builder{
		profiles: profiles,
		jobs:     jobs,
		state:    state,
		scorer:   scorer,
		logger:   log.WithFields(map[string]interface{}{"component": "feed"}),
		size:      DefaultSize,
		matchSize: DefaultMatchSize,
		good:      ranking.DefaultGoodMatchThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build loads, scores, merges and ranks. A missing profile yields an empty
// one (every included factor scores 0). A failed AI score lookup degrades
// to internal scores only.
func (b *Builder) Build(ctx context.Context, req Request) (*Feed, error) {
	if req.CandidateID == "" {
		return nil, errors.NewInvalidInputError("candidateId is required")
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	if req.Filter.GoodMatchThreshold == 0 {
		req.Filter.GoodMatchThreshold = b.good
	}

	ctx, span := b.obs.StartSpan(ctx, "feed.build", attribute.String("candidate.id", req.CandidateID))
	defer span.End()

	profile, err := b.profile(ctx, req.CandidateID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	size := b.fetchSize(req.Filter)
	jobs, err := b.jobs.SearchJobs(ctx, models.JobQuery{
		Query:      req.Filter.Query,
		Location:   req.Filter.Location,
		Source:     req.Filter.Source,
		ActiveOnly: true,
		Size:       size,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	jobIDs := make([]string, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
	}

	var (
		results      []models.MatchResult
		interactions []models.Interaction
		applications []models.Application
		external     map[string]models.MatchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = b.scorer.ScoreAll(gctx, *profile, jobs)
		return err
	})
	g.Go(func() error {
		var err error
		interactions, err = b.state.ListInteractions(gctx, req.CandidateID, jobIDs)
		return err
	})
	g.Go(func() error {
		var err error
		applications, err = b.state.ListApplications(gctx, req.CandidateID, jobIDs)
		return err
	})
	if b.external != nil {
		g.Go(func() error {
			var err error
			external, err = b.external.GetExternalScores(gctx, req.CandidateID, jobIDs)
			if err != nil {
				b.logger.Warn("external scores unavailable, using internal scores", map[string]interface{}{
					"candidateId": req.CandidateID,
					"error":       err,
				})
				external = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	rows := merge(jobs, results, interactions, applications, external)
	ranked := ranking.Rank(rows, req.Filter)
	metrics.FeedRows.Observe(float64(len(ranked)))

	b.logger.Debug("feed built", map[string]interface{}{
		"candidateId": req.CandidateID,
		"considered":  len(jobs),
		"returned":    len(ranked),
	})

	return &Feed{
		CandidateID: req.CandidateID,
		Rows:        ranked,
		Considered:  len(jobs),
		Truncated:   len(jobs) >= size,
		Threshold:   req.Filter.GoodMatchThreshold,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// fetchSize widens the pool when rows are ordered or cut by score; postings
// past the pool never reach the ranker, which Feed.Truncated reports.
func (b *Builder) fetchSize(f ranking.FilterSpec) int {
	if (f.SortBy == ranking.SortMatch || f.GoodMatchesOnly) && b.matchSize > b.size {
		return b.matchSize
	}
	return b.size
}

func (b *Builder) profile(ctx context.Context, candidateID string) (*models.CandidateProfile, error) {
	p, err := b.profiles.GetProfile(ctx, candidateID)
	if stderrors.Is(err, errors.ErrNotFound) {
		b.logger.Info("no profile for candidate, scoring against an empty profile", map[string]interface{}{
			"candidateId": candidateID,
		})
		return &models.CandidateProfile{ID: candidateID}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func merge(jobs []models.JobPosting, results []models.MatchResult, interactions []models.Interaction,
	applications []models.Application, external map[string]models.MatchResult) []ranking.Row {

	byJobInteraction := make(map[string]*models.Interaction, len(interactions))
	for i := range interactions {
		byJobInteraction[interactions[i].JobID] = &interactions[i]
	}
	byJobApplication := make(map[string]*models.Application, len(applications))
	for i := range applications {
		byJobApplication[applications[i].JobID] = &applications[i]
	}

	rows := make([]ranking.Row, len(jobs))
	for i, job := range jobs {
		row := ranking.Row{Job: job}
		if i < len(results) {
			r := results[i]
			row.Match = &r
		}
		if ext, ok := external[job.ID]; ok {
			ext.Source = models.ScoreSourceExternal
			row.External = &ext
		}
		if job.IsFirstParty() {
			row.Application = byJobApplication[job.ID]
		} else {
			row.Interaction = byJobInteraction[job.ID]
		}
		rows[i] = row
	}
	return rows
}
