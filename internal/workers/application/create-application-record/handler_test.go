// internal/workers/application/create-application-record/handler_test.go
package createapplicationrecord

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

func setupHandler(t *testing.T, checkJobs bool) (*Handler, *memory.Store) {
	log := logger.NewTestLogger(t)
	store := memory.New()
	store.PutJob(models.JobPosting{ID: "shop", Title: "Shop Welder", Source: models.SourceFirstParty, Active: true})
	store.PutJob(models.JobPosting{ID: "agg", Title: "Pipe Welder", Source: "indeed", Active: true})
	store.PutJob(models.JobPosting{ID: "closed", Title: "Fitter", Source: models.SourceFirstParty})

	var jobs JobSource
	if checkJobs {
		jobs = store
	}
	return NewHandler(DefaultConfig(), application.NewService(store, nil, log), jobs, log), store
}

func intPtr(v int) *int { return &v }

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Creates(t *testing.T) {
	h, store := setupHandler(t, true)
	ctx := context.Background()

	out, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "shop", CoverMessage: "10 years structural", MatchScore: intPtr(81)})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ApplicationID)
	assert.Equal(t, models.ApplicationNew, out.ApplicationStatus)
	assert.NotEmpty(t, out.CreatedAt)

	app, err := store.GetApplication(ctx, out.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, "10 years structural", app.CoverMessage)
	require.NotNil(t, app.MatchScore)
	assert.Equal(t, 81, *app.MatchScore)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		input    Input
		wantCode errors.ErrorCode
	}{
		{"aggregated posting", Input{CandidateID: "c1", JobID: "agg"}, errors.ErrCodeInvalidInput},
		{"inactive posting", Input{CandidateID: "c1", JobID: "closed"}, errors.ErrCodeInvalidInput},
		{"unknown posting", Input{CandidateID: "c1", JobID: "nope"}, errors.ErrCodeNotFound},
		{"score out of range", Input{CandidateID: "c1", JobID: "shop", MatchScore: intPtr(140)}, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupHandler(t, true)
			_, err := h.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}

func TestHandler_Execute_Duplicate(t *testing.T) {
	h, _ := setupHandler(t, true)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "shop"})
	require.NoError(t, err)

	_, err = h.Execute(ctx, &Input{CandidateID: "c1", JobID: "shop"})
	assert.Equal(t, errors.ErrCodeDuplicateApplication, errors.CodeOf(err))

	bpmn := errors.ConvertToBPMNError(errors.AsStandard(err))
	assert.Equal(t, 0, bpmn.Retries)
}

func TestHandler_Execute_WithoutJobCheck(t *testing.T) {
	h, _ := setupHandler(t, false)

	out, err := h.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "agg"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationNew, out.ApplicationStatus)
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
		{"minimal", map[string]interface{}{"candidateId": "c1", "jobId": "shop"}, false},
		{"with score", map[string]interface{}{"candidateId": "c1", "jobId": "shop", "matchScore": 55}, false},
		{"null score", map[string]interface{}{"candidateId": "c1", "jobId": "shop", "matchScore": nil}, false},
		{"fractional score", map[string]interface{}{"candidateId": "c1", "jobId": "shop", "matchScore": 55.5}, true},
		{"missing candidate", map[string]interface{}{"jobId": "shop"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.variables)
			_, err := parseInput(string(raw))
			if tt.wantErr {
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
