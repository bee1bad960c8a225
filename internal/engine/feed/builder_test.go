// internal/engine/feed/builder_test.go
package feed

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/engine/ranking"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeProfiles struct {
	profiles map[string]models.CandidateProfile
	err      error
}

func (f fakeProfiles) GetProfile(ctx context.Context, id string) (*models.CandidateProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, errors.NewNotFoundError("candidate profile", id)
	}
	return &p, nil
}

type fakeJobs struct {
	jobs  []models.JobPosting
	err   error
	query models.JobQuery
}

func (f *fakeJobs) SearchJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, error) {
	f.query = q
	return f.jobs, f.err
}

type fakeState struct {
	interactions []models.Interaction
	applications []models.Application
	err          error
}

func (f fakeState) ListInteractions(ctx context.Context, cid string, jobIDs []string) ([]models.Interaction, error) {
	return f.interactions, f.err
}

func (f fakeState) ListApplications(ctx context.Context, cid string, jobIDs []string) ([]models.Application, error) {
	return f.applications, nil
}

type fakeExternal struct {
	scores map[string]models.MatchResult
	err    error
}

func (f fakeExternal) GetExternalScores(ctx context.Context, cid string, jobIDs []string) (map[string]models.MatchResult, error) {
	return f.scores, f.err
}

func welder() models.CandidateProfile {
	return models.CandidateProfile{
		ID:              "cand-1",
		YearsExperience: 5,
		Processes:       attributes.NewTagSet("SMAW", "GMAW"),
		Positions:       attributes.NewTagSet("3G"),
	}
}

func postings() []models.JobPosting {
	return []models.JobPosting{
		{
			ID: "pipe", Title: "Pipeline Welder", Company: "Gulf Pipe", Source: "indeed", Active: true,
			JobRequirement: models.JobRequirement{
				MinExperience:          3,
				RequiredProcesses:      attributes.NewTagSet("SMAW", "GTAW"),
				RequiredPositions:      attributes.NewTagSet("3G"),
				RequiredCertifications: attributes.NewTagSet("CWI"),
			},
		},
		{ID: "open", Title: "Shop Helper", Company: "Acme Fab", Source: models.SourceFirstParty, Active: true},
		{
			ID: "tig", Title: "TIG Welder", Company: "Acme Fab", Source: "indeed", Active: true,
			JobRequirement: models.JobRequirement{RequiredProcesses: attributes.NewTagSet("GTAW")},
		},
	}
}

func jobIDs(f *Feed) []string {
	out := make([]string, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Job.ID
	}
	return out
}

func newBuilder(t *testing.T, jobs *fakeJobs, state fakeState, opts ...Option) *Builder {
	profiles := fakeProfiles{profiles: map[string]models.CandidateProfile{"cand-1": welder()}}
	log := logger.NewTestLogger(t)
	return NewBuilder(profiles, jobs, state, scoring.New(log), log, opts...)
}

// ==========================
// Build
// ==========================

func TestBuild_ScoresMergesAndRanks(t *testing.T) {
	jobs := &fakeJobs{jobs: postings()}
	state := fakeState{
		interactions: []models.Interaction{{JobID: "pipe", Status: models.InteractionSaved}},
		applications: []models.Application{{JobID: "open", Status: models.ApplicationReviewing}},
	}
	b := newBuilder(t, jobs, state)

	feed, err := b.Build(context.Background(), Request{
		CandidateID: "cand-1",
		Filter:      ranking.FilterSpec{SortBy: ranking.SortMatch},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, feed.Considered)
	assert.Equal(t, []string{"pipe", "open", "tig"}, jobIDs(feed))
	assert.Equal(t, 62, feed.Rows[0].Match.Score)
	assert.Equal(t, 50, feed.Rows[1].Match.Score)
	assert.Equal(t, 0, feed.Rows[2].Match.Score)

	require.NotNil(t, feed.Rows[0].Interaction)
	assert.Equal(t, models.InteractionSaved, feed.Rows[0].Interaction.Status)
	require.NotNil(t, feed.Rows[1].Application)
	assert.Nil(t, feed.Rows[1].Interaction)

	assert.True(t, jobs.query.ActiveOnly)
	assert.Equal(t, DefaultMatchSize, jobs.query.Size)
	assert.False(t, feed.Truncated)
}

// sizedJobs honors the requested size like the search index does.
type sizedJobs struct {
	jobs  []models.JobPosting
	sizes []int
}

func (s *sizedJobs) SearchJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, error) {
	s.sizes = append(s.sizes, q.Size)
	if q.Size > 0 && q.Size < len(s.jobs) {
		return s.jobs[:q.Size], nil
	}
	return s.jobs, nil
}

func TestBuild_MatchSortWidensPool(t *testing.T) {
	var pool []models.JobPosting
	for i := 0; i < 149; i++ {
		pool = append(pool, models.JobPosting{
			ID: fmt.Sprintf("tig-%d", i), Title: "TIG Welder", Active: true,
			JobRequirement: models.JobRequirement{RequiredProcesses: attributes.NewTagSet("GTAW")},
		})
	}
	pool = append(pool, models.JobPosting{
		ID: "stick", Title: "Stick Welder", Active: true,
		JobRequirement: models.JobRequirement{RequiredProcesses: attributes.NewTagSet("SMAW")},
	})

	jobs := &sizedJobs{jobs: pool}
	profiles := fakeProfiles{profiles: map[string]models.CandidateProfile{"cand-1": welder()}}
	log := logger.NewTestLogger(t)
	b := NewBuilder(profiles, jobs, fakeState{}, scoring.New(log), log)
	ctx := context.Background()

	byMatch, err := b.Build(ctx, Request{CandidateID: "cand-1", Filter: ranking.FilterSpec{SortBy: ranking.SortMatch, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"stick"}, jobIDs(byMatch))
	assert.Equal(t, 150, byMatch.Considered)
	assert.False(t, byMatch.Truncated)

	good, err := b.Build(ctx, Request{CandidateID: "cand-1", Filter: ranking.FilterSpec{GoodMatchesOnly: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"stick"}, jobIDs(good))

	byDate, err := b.Build(ctx, Request{CandidateID: "cand-1", Filter: ranking.FilterSpec{SortBy: ranking.SortDate}})
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, byDate.Considered)
	assert.True(t, byDate.Truncated)

	assert.Equal(t, []int{DefaultMatchSize, DefaultMatchSize, DefaultSize}, jobs.sizes)
}

func TestBuild_SizeOptions(t *testing.T) {
	jobs := &sizedJobs{jobs: postings()}
	profiles := fakeProfiles{profiles: map[string]models.CandidateProfile{"cand-1": welder()}}
	log := logger.NewTestLogger(t)
	b := NewBuilder(profiles, jobs, fakeState{}, scoring.New(log), log, WithSize(2), WithMatchSize(3))
	ctx := context.Background()

	f, err := b.Build(ctx, Request{CandidateID: "cand-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Considered)
	assert.True(t, f.Truncated)

	f, err = b.Build(ctx, Request{CandidateID: "cand-1", Filter: ranking.FilterSpec{SortBy: ranking.SortMatch}})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Considered)
	assert.Equal(t, []int{2, 3}, jobs.sizes)
}

func TestBuild_ExternalScoreWins(t *testing.T) {
	jobs := &fakeJobs{jobs: postings()}
	ext := fakeExternal{scores: map[string]models.MatchResult{"tig": {JobID: "tig", Score: 88}}}
	b := newBuilder(t, jobs, fakeState{}, WithExternalScores(ext))

	feed, err := b.Build(context.Background(), Request{
		CandidateID: "cand-1",
		Filter:      ranking.FilterSpec{SortBy: ranking.SortMatch, GoodMatchesOnly: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"tig"}, jobIDs(feed))
	assert.Equal(t, models.ScoreSourceExternal, feed.Rows[0].DisplayResult().Source)
}

func TestBuild_ExternalFailureDegrades(t *testing.T) {
	jobs := &fakeJobs{jobs: postings()}
	ext := fakeExternal{err: stderrors.New("redis down")}
	b := newBuilder(t, jobs, fakeState{}, WithExternalScores(ext))

	feed, err := b.Build(context.Background(), Request{CandidateID: "cand-1"})
	require.NoError(t, err)
	assert.Len(t, feed.Rows, 3)
	for _, r := range feed.Rows {
		assert.Nil(t, r.External)
	}
}

func TestBuild_MissingProfileScoresEmpty(t *testing.T) {
	jobs := &fakeJobs{jobs: postings()}
	b := newBuilder(t, jobs, fakeState{})

	feed, err := b.Build(context.Background(), Request{CandidateID: "nobody"})
	require.NoError(t, err)
	scores := map[string]int{}
	for _, r := range feed.Rows {
		scores[r.Job.ID] = r.Match.Score
	}
	assert.Equal(t, map[string]int{"pipe": 0, "open": 50, "tig": 0}, scores)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("missing candidate", func(t *testing.T) {
		b := newBuilder(t, &fakeJobs{}, fakeState{})
		_, err := b.Build(context.Background(), Request{})
		assert.True(t, stderrors.Is(err, errors.ErrInvalidInput))
	})

	t.Run("bad filter", func(t *testing.T) {
		b := newBuilder(t, &fakeJobs{}, fakeState{})
		_, err := b.Build(context.Background(), Request{CandidateID: "cand-1", Filter: ranking.FilterSpec{SortBy: "salary"}})
		assert.True(t, stderrors.Is(err, errors.ErrInvalidFilterFormat))
	})

	t.Run("search failure", func(t *testing.T) {
		b := newBuilder(t, &fakeJobs{err: errors.NewSearchTimeoutError("jobs")}, fakeState{})
		_, err := b.Build(context.Background(), Request{CandidateID: "cand-1"})
		assert.Equal(t, errors.ErrCodeSearchTimeout, errors.CodeOf(err))
	})

	t.Run("state failure", func(t *testing.T) {
		state := fakeState{err: errors.NewDatabaseQueryFailedError("list interactions", stderrors.New("conn reset"))}
		b := newBuilder(t, &fakeJobs{jobs: postings()}, state)
		_, err := b.Build(context.Background(), Request{CandidateID: "cand-1"})
		assert.Equal(t, errors.ErrCodeDatabaseQueryFailed, errors.CodeOf(err))
	})

	t.Run("profile failure", func(t *testing.T) {
		log := logger.NewTestLogger(t)
		b := NewBuilder(fakeProfiles{err: errors.NewCacheFailedError("get profile", stderrors.New("x"))},
			&fakeJobs{}, fakeState{}, scoring.New(log), log)
		_, err := b.Build(context.Background(), Request{CandidateID: "cand-1"})
		assert.Equal(t, errors.ErrCodeCacheFailed, errors.CodeOf(err))
	})
}

func TestBuild_GoodMatchThresholdOption(t *testing.T) {
	tests := []struct {
		name    string
		opt     int
		request int
		want    []string
		wantCut int
	}{
		{"default cut", 0, 0, []string{}, ranking.DefaultGoodMatchThreshold},
		{"builder cut", 60, 0, []string{"pipe"}, 60},
		{"request wins", 60, 45, []string{"pipe", "open"}, 45},
		{"out of range option ignored", 150, 0, []string{}, ranking.DefaultGoodMatchThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, &fakeJobs{jobs: postings()}, fakeState{}, WithGoodMatchThreshold(tt.opt))

			feed, err := b.Build(context.Background(), Request{
				CandidateID: "cand-1",
				Filter: ranking.FilterSpec{
					SortBy:             ranking.SortMatch,
					GoodMatchesOnly:    true,
					GoodMatchThreshold: tt.request,
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobIDs(feed))
			assert.Equal(t, tt.wantCut, feed.Threshold)
		})
	}
}
