// internal/workers/interaction/record-interaction/handler_test.go
package recordinteraction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/store/memory"
)

func setupHandler(t *testing.T) *Handler {
	log := logger.NewTestLogger(t)
	return NewHandler(DefaultConfig(), interaction.NewService(memory.New(), log), log)
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Sequence(t *testing.T) {
	h := setupHandler(t)
	ctx := context.Background()

	steps := []struct {
		input      Input
		wantStatus models.InteractionStatus
		wantCode   errors.ErrorCode
	}{
		{Input{Action: ActionSave}, models.InteractionSaved, ""},
		{Input{Action: ActionApplyClick}, models.InteractionClickedApply, ""},
		{Input{Action: ActionSave}, models.InteractionClickedApply, ""},
		{Input{Action: ActionApplied, Notes: "called the foreman"}, models.InteractionApplied, ""},
		{Input{Action: ActionNotInterested}, "", errors.ErrCodeInvalidTransition},
		{Input{Action: ActionNotes, Notes: "interview friday"}, models.InteractionApplied, ""},
	}

	var id string
	for i, step := range steps {
		in := step.input
		in.CandidateID, in.JobID = "c1", "j1"

		out, err := h.Execute(ctx, &in)
		if step.wantCode != "" {
			require.Error(t, err, "step %d", i)
			assert.Equal(t, step.wantCode, errors.CodeOf(err), "step %d", i)
			continue
		}
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantStatus, out.InteractionStatus, "step %d", i)
		if id == "" {
			id = out.InteractionID
		}
		assert.Equal(t, id, out.InteractionID, "one record per candidate and job")
	}

	out, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "j1", Action: ActionNotes, Notes: "interview friday"})
	require.NoError(t, err)
	assert.Equal(t, "interview friday", out.Interaction.Notes)
	assert.NotNil(t, out.Interaction.AppliedAt)
}

func TestHandler_Execute_NotInterestedBlocksApplied(t *testing.T) {
	h := setupHandler(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "j2", Action: ActionNotInterested})
	require.NoError(t, err)

	_, err = h.Execute(ctx, &Input{CandidateID: "c1", JobID: "j2", Action: ActionApplied})
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.CodeOf(err))

	out, err := h.Execute(ctx, &Input{CandidateID: "c1", JobID: "j2", Action: ActionSave})
	require.NoError(t, err)
	assert.Equal(t, models.InteractionSaved, out.InteractionStatus)
}

func TestHandler_Execute_UnknownAction(t *testing.T) {
	h := setupHandler(t)
	_, err := h.Execute(context.Background(), &Input{CandidateID: "c1", JobID: "j1", Action: "archive"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
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
		{"save", map[string]interface{}{"candidateId": "c1", "jobId": "j1", "action": "save"}, false},
		{"applied with notes", map[string]interface{}{"candidateId": "c1", "jobId": "j1", "action": "applied", "notes": "x"}, false},
		{"unknown action", map[string]interface{}{"candidateId": "c1", "jobId": "j1", "action": "archive"}, true},
		{"missing job", map[string]interface{}{"candidateId": "c1", "action": "save"}, true},
		{"notes wrong type", map[string]interface{}{"candidateId": "c1", "jobId": "j1", "action": "notes", "notes": 3}, true},
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

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, FromWorkerConfig(config.WorkerConfig{Enabled: true}).Validate())
	assert.Error(t, (&Config{}).Validate())
}
