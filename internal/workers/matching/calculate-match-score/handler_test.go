// internal/workers/matching/calculate-match-score/handler_test.go
package calculatematchscore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/store/cache"
	"trade-match-engine/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

func pipeJob() models.JobPosting {
	return models.JobPosting{ID: "pipe", Title: "Pipeline Welder", Source: "indeed", Active: true,
		JobRequirement: models.JobRequirement{
			MinExperience:          3,
			RequiredProcesses:      attributes.NewTagSet("SMAW", "GTAW"),
			RequiredPositions:      attributes.NewTagSet("3G"),
			RequiredCertifications: attributes.NewTagSet("CWI"),
		}}
}

func candidate() *models.CandidateProfile {
	return &models.CandidateProfile{
		ID:              "c1",
		YearsExperience: 5,
		Processes:       attributes.NewTagSet("SMAW", "GMAW"),
		Positions:       attributes.NewTagSet("3G"),
	}
}

func setupHandler(t *testing.T, withCache bool) (*Handler, *miniredis.Miniredis) {
	log := logger.NewTestLogger(t)
	store := memory.New()
	require.NoError(t, store.UpsertProfile(context.Background(), candidate()))
	store.PutJob(pipeJob())

	var (
		scores ScoreCache
		mr     *miniredis.Miniredis
	)
	if withCache {
		var err error
		mr, err = miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		scores = cache.NewScoreCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	}

	return NewHandler(DefaultConfig(), scoring.New(log), store, store, scores, log), mr
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_ByID(t *testing.T) {
	h, _ := setupHandler(t, false)

	out, err := h.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "pipe"})
	require.NoError(t, err)

	assert.Equal(t, 62, out.MatchScore)
	assert.Equal(t, "Fair Match", out.Band)
	assert.Equal(t, []string{"GTAW", "CWI"}, out.MissingSkills)
	assert.Len(t, out.Breakdown, 4)
	assert.False(t, out.Cached)
}

func TestHandler_Execute_Inline(t *testing.T) {
	h, _ := setupHandler(t, false)
	job := pipeJob()

	out, err := h.Execute(context.Background(), &Input{Candidate: candidate(), Job: &job})
	require.NoError(t, err)
	assert.Equal(t, 62, out.MatchScore)
}

func TestHandler_Execute_UsesCache(t *testing.T) {
	h, mr := setupHandler(t, true)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "pipe"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, mr.Exists("match:score:c1:pipe"))

	second, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "pipe"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.MatchScore, second.MatchScore)
}

func TestHandler_Execute_CacheDownStillScores(t *testing.T) {
	h, mr := setupHandler(t, true)
	mr.Close()

	out, err := h.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "pipe"})
	require.NoError(t, err)
	assert.Equal(t, 62, out.MatchScore)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	h, _ := setupHandler(t, false)

	tests := []struct {
		name  string
		input *Input
	}{
		{"unknown candidate", &Input{CandidateID: "nobody", JobID: "pipe"}},
		{"unknown job", &Input{CandidateID: "c1", JobID: "gone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
		})
	}
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"ids", map[string]interface{}{"candidateId": "c1", "jobId": "pipe"}, false},
		{"inline", map[string]interface{}{"candidate": map[string]interface{}{"id": "c1"}, "job": map[string]interface{}{"id": "j"}}, false},
		{"mixed with extra process vars", map[string]interface{}{"candidateId": "c1", "job": map[string]interface{}{"id": "j"}, "traceId": "x"}, false},
		{"missing job", map[string]interface{}{"candidateId": "c1"}, true},
		{"missing candidate", map[string]interface{}{"jobId": "pipe"}, true},
		{"empty id", map[string]interface{}{"candidateId": "", "jobId": "pipe"}, true},
		{"wrong type", map[string]interface{}{"candidateId": 7, "jobId": "pipe"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.variables)
			input, err := parseInput(string(raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, input)
		})
	}
}

func TestParseInput_BadJSON(t *testing.T) {
	_, err := parseInput("{not json")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

// ==========================
// Config Tests
// ==========================

func TestConfig(t *testing.T) {
	cfg := FromWorkerConfig(config.WorkerConfig{Enabled: true, MaxJobsActive: 3, Timeout: 2500})
	assert.Equal(t, 3, cfg.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	defaults := FromWorkerConfig(config.WorkerConfig{})
	assert.False(t, defaults.Enabled)
	assert.Equal(t, 10, defaults.MaxJobsActive)

	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
	assert.Error(t, (&Config{Timeout: time.Second}).Validate())
}
