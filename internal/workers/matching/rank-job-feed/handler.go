// internal/workers/matching/rank-job-feed/handler.go
package rankjobfeed

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/ranking"
)

const (
	TaskType = "rank-job-feed"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

type Handler struct {
	config *Config
	feed   *feed.Builder
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, builder *feed.Builder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		feed:   builder,
		errors: errors.NewErrorHandler(log),
		logger: log,
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
	filter := input.Filter
	if filter.Limit == 0 || filter.Limit > h.config.MaxRows {
		filter.Limit = h.config.MaxRows
	}

	out, err := h.feed.Build(ctx, feed.Request{CandidateID: input.CandidateID, Filter: filter})
	if err != nil {
		return nil, err
	}

	rows := out.Rows
	if rows == nil {
		rows = []ranking.Row{}
	}
	output := &Output{
		FeedRows:   rows,
		FeedCount:  len(rows),
		Considered: out.Considered,
		TopJobIDs:  make([]string, 0, len(rows)),
	}
	for _, row := range rows {
		output.TopJobIDs = append(output.TopJobIDs, row.Job.ID)
		if score, ok := row.DisplayScore(); ok && score >= out.Threshold {
			output.GoodMatchCount++
		}
	}

	h.logger.Info("feed ranked", map[string]interface{}{
		"candidateId": input.CandidateID,
		"rows":        output.FeedCount,
		"considered":  output.Considered,
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
