// internal/workers/matching/calculate-match-score/handler.go
package calculatematchscore

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
)

const (
	TaskType = "calculate-match-score"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

type ProfileSource interface {
	GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error)
}

type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*models.JobPosting, error)
}

// ScoreCache is optional; a nil cache scores every job.
type ScoreCache interface {
	Get(ctx context.Context, candidateID, jobID string) (*models.MatchResult, error)
	Set(ctx context.Context, r models.MatchResult) error
}

type Handler struct {
	config   *Config
	scorer   *scoring.Scorer
	profiles ProfileSource
	jobs     JobSource
	cache    ScoreCache
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, scorer *scoring.Scorer, profiles ProfileSource, jobs JobSource, cache ScoreCache, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		scorer:   scorer,
		profiles: profiles,
		jobs:     jobs,
		cache:    cache,
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
	candidate, err := h.candidate(ctx, input)
	if err != nil {
		return nil, err
	}
	posting, err := h.posting(ctx, input)
	if err != nil {
		return nil, err
	}

	cacheable := h.cache != nil && input.Candidate == nil && input.Job == nil
	if cacheable {
		hit, err := h.cache.Get(ctx, candidate.ID, posting.ID)
		if err != nil {
			h.logger.Warn("score cache read failed", map[string]interface{}{"error": err})
		} else if hit != nil {
			return outputFrom(*hit, true), nil
		}
	}

	result, err := h.scorer.Score(*candidate, *posting)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := h.cache.Set(ctx, result); err != nil {
			h.logger.Warn("score cache write failed", map[string]interface{}{"error": err})
		}
	}

	h.logger.Info("match score calculated", map[string]interface{}{
		"candidateId": result.CandidateID,
		"jobId":       result.JobID,
		"score":       result.Score,
		"band":        result.Band,
	})
	return outputFrom(result, false), nil
}

func (h *Handler) candidate(ctx context.Context, input *Input) (*models.CandidateProfile, error) {
	if input.Candidate != nil {
		return input.Candidate, nil
	}
	return h.profiles.GetProfile(ctx, input.CandidateID)
}

func (h *Handler) posting(ctx context.Context, input *Input) (*models.JobPosting, error) {
	if input.Job != nil {
		return input.Job, nil
	}
	return h.jobs.GetJob(ctx, input.JobID)
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
