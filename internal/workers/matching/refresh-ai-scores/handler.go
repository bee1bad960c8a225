// internal/workers/matching/refresh-ai-scores/handler.go
package refreshaiscores

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/models"
)

const (
	TaskType = "refresh-ai-scores"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

type ProfileSource interface {
	GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error)
}

type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*models.JobPosting, error)
}

// AIScorer stores external verdicts for the given jobs and reports how many
// were stored.
type AIScorer interface {
	ScoreJobs(ctx context.Context, candidate models.CandidateProfile, jobs []models.JobPosting) (int, error)
}

type Handler struct {
	config   *Config
	profiles ProfileSource
	jobs     JobSource
	scorer   AIScorer
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, profiles ProfileSource, jobs JobSource, scorer AIScorer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		profiles: profiles,
		jobs:     jobs,
		scorer:   scorer,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
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
	ids := input.JobIDs
	if len(ids) > h.config.MaxJobs {
		ids = ids[:h.config.MaxJobs]
	}
	output := &Output{Requested: len(ids), Skipped: []string{}}
	if len(ids) == 0 {
		return output, nil
	}

	profile, err := h.profiles.GetProfile(ctx, input.CandidateID)
	if err != nil {
		return nil, err
	}

	postings := make([]models.JobPosting, 0, len(ids))
	for _, id := range ids {
		posting, err := h.jobs.GetJob(ctx, id)
		if stderrors.Is(err, errors.ErrNotFound) {
			output.Skipped = append(output.Skipped, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		postings = append(postings, *posting)
	}

	stored, err := h.scorer.ScoreJobs(ctx, *profile, postings)
	if err != nil {
		return nil, err
	}
	if stored == 0 && len(postings) > 0 {
		return nil, errors.NewAIScoringFailedError(fmt.Errorf("no verdicts stored for %d jobs", len(postings)))
	}
	output.Stored = stored

	h.logger.Info("ai scores refreshed", map[string]interface{}{
		"candidateId": input.CandidateID,
		"requested":   output.Requested,
		"stored":      stored,
		"skipped":     len(output.Skipped),
	})
	return output, nil
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
