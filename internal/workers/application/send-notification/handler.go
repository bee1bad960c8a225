// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/common/validation"
	"trade-match-engine/internal/models"
)

const (
	TaskType = "send-notification"
)

var schema = validation.MustCompile(TaskType+".input", inputSchema)

type ApplicationSource interface {
	Get(ctx context.Context, applicationID string) (*models.Application, error)
}

// Deliverer sends one notification and reports per-channel outcomes.
type Deliverer interface {
	Deliver(ctx context.Context, note models.StatusNotification) (*models.DeliveryReport, error)
}

type Handler struct {
	config       *Config
	applications ApplicationSource
	deliverer    Deliverer
	errors       *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, applications ApplicationSource, deliverer Deliverer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		applications: applications,
		deliverer:    deliverer,
		errors:       errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
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
	app, err := h.applications.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	note := models.StatusNotification{
		ID:            input.NotificationID,
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
		JobID:         app.JobID,
		Status:        app.Status,
		OccurredAt:    h.now().UTC(),
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if input.Status != "" {
		note.Status = input.Status
	}
	if !note.Status.IsEmployerTarget() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("no notification for status %q", note.Status))
	}
	if note.Status == models.ApplicationRejected {
		note.RejectionReason = input.RejectionReason
		if note.RejectionReason == "" {
			note.RejectionReason = app.RejectionReason
		}
	}

	report, err := h.deliverer.Deliver(ctx, note)
	if err != nil {
		return nil, err
	}
	metrics.NotificationsTotal.WithLabelValues(report.Status).Inc()

	if report.Status == models.DeliveryFailed && h.config.FailOnChannelError {
		var failed []string
		for ch, ok := range report.Channels {
			if !ok {
				failed = append(failed, ch)
			}
		}
		sort.Strings(failed)
		return nil, errors.NewNotificationFailedError(strings.Join(failed, ","), fmt.Errorf("notification %s not delivered", note.ID))
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"notificationId": note.ID,
		"applicationId":  note.ApplicationID,
		"status":         report.Status,
		"channels":       report.Channels,
	})

	return &Output{
		NotificationID: report.NotificationID,
		Status:         report.Status,
		Channels:       report.Channels,
		SentAt:         report.SentAt,
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
