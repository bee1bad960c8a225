// internal/engine/interaction/service.go
package interaction

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/models"
)

const machine = "interaction"

// Store persists one interaction per (candidate, job).
//
// SaveInteraction writes it only if the stored version still equals
// expectedVersion. Zero means "insert, the row must not exist yet". A lost
// race returns an error matching errors.ErrConcurrentUpdate. GetInteraction
// returns errors.ErrNotFound when no row exists.
type Store interface {
	GetInteraction(ctx context.Context, candidateID, jobID string) (*models.Interaction, error)
	SaveInteraction(ctx context.Context, it *models.Interaction, expectedVersion int) error
}

// Service runs the interaction lifecycle for aggregated postings. It sends
// no notifications.
type Service struct {
	store   Store
	logger  logger.Logger
	obs     *observability.Observability
	retries int
	now     func() time.Time
}

type Option func(*Service)

// WithRetries sets how many times a lost compare-and-set is retried.
func WithRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Service) { s.obs = obs }
}

func NewService(store Store, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Service{
		store:   store,
		logger:  log.WithFields(map[string]interface{}{"component": "interaction"}),
		retries: 3,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutation edits it in place and reports whether anything changed.
type mutation func(it *models.Interaction, now time.Time) (bool, error)

// Save bookmarks the job. It never moves an interaction backward: from
// clicked_apply or applied it is a successful no-op.
func (s *Service) Save(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	return s.apply(ctx, "save", candidateID, jobID, func(it *models.Interaction, now time.Time) (bool, error) {
		switch it.Status {
		case models.InteractionSaved, models.InteractionClickedApply, models.InteractionApplied:
			return false, nil
		}
		// new, or re-engaging after not_interested
		it.Status = models.InteractionSaved
		it.SavedAt = &now
		return true, nil
	})
}

// RecordApplyClick always refreshes the click timestamp and moves to
// clicked_apply unless the candidate already reported applying. A click on
// a dismissed job re-engages it like Save does, after which applied is legal.
func (s *Service) RecordApplyClick(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	return s.apply(ctx, "apply_click", candidateID, jobID, func(it *models.Interaction, now time.Time) (bool, error) {
		it.ClickedAt = &now
		if it.Status != models.InteractionApplied {
			it.Status = models.InteractionClickedApply
		}
		return true, nil
	})
}

// MarkApplied records a self-reported application. It is rejected from
// not_interested; the candidate has to re-engage first.
func (s *Service) MarkApplied(ctx context.Context, candidateID, jobID, notes string) (*models.Interaction, error) {
	return s.apply(ctx, "applied", candidateID, jobID, func(it *models.Interaction, now time.Time) (bool, error) {
		if it.Status == models.InteractionNotInterested {
			return false, errors.NewInvalidTransitionError(machine, string(it.Status), string(models.InteractionApplied))
		}
		changed := false
		if it.Status != models.InteractionApplied {
			it.Status = models.InteractionApplied
			changed = true
		}
		if it.AppliedAt == nil {
			it.AppliedAt = &now
			changed = true
		}
		if notes != "" && notes != it.Notes {
			it.Notes = notes
			changed = true
		}
		return changed, nil
	})
}

// MarkNotInterested dismisses the job. It is rejected once applied.
func (s *Service) MarkNotInterested(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	return s.apply(ctx, "not_interested", candidateID, jobID, func(it *models.Interaction, now time.Time) (bool, error) {
		switch it.Status {
		case models.InteractionApplied:
			return false, errors.NewInvalidTransitionError(machine, string(it.Status), string(models.InteractionNotInterested))
		case models.InteractionNotInterested:
			return false, nil
		}
		it.Status = models.InteractionNotInterested
		return true, nil
	})
}

// UpdateNotes changes notes without touching status.
func (s *Service) UpdateNotes(ctx context.Context, candidateID, jobID, notes string) (*models.Interaction, error) {
	return s.apply(ctx, "notes", candidateID, jobID, func(it *models.Interaction, now time.Time) (bool, error) {
		if it.Notes == notes {
			return false, nil
		}
		it.Notes = notes
		return true, nil
	})
}

// Get returns the stored interaction or an ErrNotFound error.
func (s *Service) Get(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	return s.store.GetInteraction(ctx, candidateID, jobID)
}

// apply reads, mutates and compare-and-sets, re-reading on a lost race so
// concurrent calls settle on the most progressed status.
func (s *Service) apply(ctx context.Context, action, candidateID, jobID string, fn mutation) (*models.Interaction, error) {
	if candidateID == "" || jobID == "" {
		return nil, errors.NewInvalidInputError("candidateId and jobId are required")
	}

	ctx, span := s.obs.StartSpan(ctx, "interaction."+action,
		attribute.String("candidate.id", candidateID),
		attribute.String("job.id", jobID),
	)
	defer span.End()

	for attempt := 0; attempt <= s.retries; attempt++ {
		current, err := s.store.GetInteraction(ctx, candidateID, jobID)
		exists := true
		if stderrors.Is(err, errors.ErrNotFound) {
			exists = false
			current = s.fresh(candidateID, jobID)
		} else if err != nil {
			return nil, err
		}

		expected := current.Version
		if !exists {
			expected = 0
		}

		now := s.now()
		next := *current
		changed, err := fn(&next, now)
		if err != nil {
			s.record(next.Status, "rejected")
			s.logger.Warn("interaction transition rejected", map[string]interface{}{
				"candidateId": candidateID,
				"jobId":       jobID,
				"action":      action,
				"from":        string(current.Status),
				"error":       err,
			})
			return nil, err
		}
		if !changed && exists {
			s.record(current.Status, "noop")
			return current, nil
		}

		next.UpdatedAt = now
		next.Version = expected + 1
		err = s.store.SaveInteraction(ctx, &next, expected)
		if stderrors.Is(err, errors.ErrConcurrentUpdate) {
			s.logger.Debug("interaction changed underneath, retrying", map[string]interface{}{
				"candidateId": candidateID,
				"jobId":       jobID,
				"attempt":     attempt + 1,
			})
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		s.record(next.Status, "changed")
		s.obs.RecordTransition(ctx, machine, string(next.Status))
		s.logger.Info("interaction updated", map[string]interface{}{
			"candidateId": candidateID,
			"jobId":       jobID,
			"action":      action,
			"from":        string(current.Status),
			"to":          string(next.Status),
		})
		return &next, nil
	}

	return nil, errors.NewConcurrentUpdateError(machine, fmt.Sprintf("%s/%s", candidateID, jobID))
}

func (s *Service) fresh(candidateID, jobID string) *models.Interaction {
	now := s.now()
	return &models.Interaction{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		JobID:       jobID,
		Status:      models.InteractionNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) record(status models.InteractionStatus, outcome string) {
	metrics.LifecycleTransitions.WithLabelValues(machine, string(status), outcome).Inc()
}
