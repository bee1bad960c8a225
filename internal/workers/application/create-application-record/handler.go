// internal/workers/application/create-application-record/handler.go
package createapplicationrecord

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/models"
)

const (
	TaskType = "create-application-record"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

// JobSource is optional. When set, applications are only accepted for
// active first-party postings.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*models.JobPosting, error)
}

type Handler struct {
	config       *Config
	applications *application.Service
	jobs         JobSource
	errors       *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, applications *application.Service, jobs JobSource, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		applications: applications,
		jobs:         jobs,
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
	if h.jobs != nil {
		posting, err := h.jobs.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, err
		}
		if !posting.IsFirstParty() {
			return nil, errors.NewInvalidInputError("job " + posting.ID + " is aggregated; track it as an interaction")
		}
		if !posting.Active {
			return nil, errors.NewInvalidInputError("job " + posting.ID + " is no longer active")
		}
	}

	app, err := h.applications.Create(ctx, input.request())
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: app.Status,
		CreatedAt:         app.CreatedAt.UTC().Format(time.RFC3339),
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
