// internal/workers/interaction/record-interaction/handler.go
package recordinteraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/models"
)

const (
	TaskType = "record-interaction"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

type Handler struct {
	config       *Config
	interactions *interaction.Service
	errors       *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, interactions *interaction.Service, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		interactions: interactions,
		errors:       errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidInputError("parse variables: " + err.Error())
	}
	if res := schema.Validate(raw); !res.Valid {
		return nil, errors.NewInvalidInputError(res.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError("decode input: " + err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		it  *models.Interaction
		err error
	)
	switch input.Action {
	case ActionSave:
		it, err = h.interactions.Save(ctx, input.CandidateID, input.JobID)
	case ActionApplyClick:
		it, err = h.interactions.RecordApplyClick(ctx, input.CandidateID, input.JobID)
	case ActionApplied:
		it, err = h.interactions.MarkApplied(ctx, input.CandidateID, input.JobID, input.Notes)
	case ActionNotInterested:
		it, err = h.interactions.MarkNotInterested(ctx, input.CandidateID, input.JobID)
	case ActionNotes:
		it, err = h.interactions.UpdateNotes(ctx, input.CandidateID, input.JobID, input.Notes)
	default:
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown action %q", input.Action))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("interaction recorded", map[string]interface{}{
		"candidateId": input.CandidateID,
		"jobId":       input.JobID,
		"action":      input.Action,
		"status":      it.Status,
	})
	return &Output{
		InteractionID:     it.ID,
		InteractionStatus: it.Status,
		Interaction:       it,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
