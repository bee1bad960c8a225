// internal/engine/application/service.go
package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/observability"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
)

const machine = "application"

// Store persists applications, unique per (candidate, job).
//
// InsertApplication returns an ErrDuplicateApplication error when the pair
// already exists. UpdateApplication writes only if the stored version still
// equals expectedVersion, returning ErrConcurrentUpdate otherwise. Lookups
// return ErrNotFound for missing rows.
type Store interface {
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	FindApplication(ctx context.Context, candidateID, jobID string) (*models.Application, error)
	InsertApplication(ctx context.Context, app *models.Application) error
	UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error
}

type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*models.JobPosting, error)
}

type ProfileSource interface {
	GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error)
}

// Service runs the employer-driven application lifecycle.
type Service struct {
	store    Store
	notifier *Notifier
	jobs     JobSource
	profiles ProfileSource
	scorer   *scoring.Scorer
	logger   logger.Logger
	obs      *observability.Observability
	retries  int
	now      func() time.Time
}

type Option func(*Service)

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

// WithAdmission makes Create accept only active first-party postings and
// replace any caller supplied score with one computed from the stored
// profile. Without it Create trusts the request.
func WithAdmission(jobs JobSource, profiles ProfileSource, scorer *scoring.Scorer) Option {
	return func(s *Service) {
		s.jobs = jobs
		s.profiles = profiles
		s.scorer = scorer
	}
}

func NewService(store Store, notifier *Notifier, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "application"}),
		retries:  3,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create submits a new application in status new. A second submission for
// the same pair is a DuplicateApplication error.
func (s *Service) Create(ctx context.Context, req models.NewApplication) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	ctx, span := s.obs.StartSpan(ctx, "application.create",
		attribute.String("candidate.id", req.CandidateID),
		attribute.String("job.id", req.JobID),
	)
	defer span.End()

	if s.jobs != nil {
		if err := s.admit(ctx, &req); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	existing, err := s.store.FindApplication(ctx, req.CandidateID, req.JobID)
	switch {
	case err == nil && existing != nil:
		return nil, errors.NewDuplicateApplicationError(req.CandidateID, req.JobID)
	case err != nil && !stderrors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	now := s.now()
	app := &models.Application{
		ID:           uuid.New().String(),
		CandidateID:  req.CandidateID,
		JobID:        req.JobID,
		Status:       models.ApplicationNew,
		MatchScore:   req.MatchScore,
		CoverMessage: req.CoverMessage,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if err := s.store.InsertApplication(ctx, app); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"candidateId":   app.CandidateID,
		"jobId":         app.JobID,
	})
	return app, nil
}

// Transition moves an application to any employer status. Rejection stores
// the reason and employer notes; other targets clear the reason. Each real
// change fires one asynchronous candidate notification; repeating the
// current status changes nothing and notifies nobody.
func (s *Service) Transition(ctx context.Context, change models.StatusChange) (*models.Application, error) {
	if err := change.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	ctx, span := s.obs.StartSpan(ctx, "application.transition",
		attribute.String("application.id", change.ApplicationID),
		attribute.String("status", string(change.Status)),
	)
	defer span.End()

	for attempt := 0; attempt <= s.retries; attempt++ {
		current, err := s.store.GetApplication(ctx, change.ApplicationID)
		if err != nil {
			return nil, err
		}

		if !change.Status.IsEmployerTarget() {
			s.logger.Warn("application transition rejected", map[string]interface{}{
				"applicationId": current.ID,
				"from":          string(current.Status),
				"to":            string(change.Status),
			})
			return nil, errors.NewInvalidTransitionError(machine, string(current.Status), string(change.Status))
		}

		if current.Status == change.Status {
			return current, nil
		}

		next := *current
		next.Status = change.Status
		next.UpdatedAt = s.now()
		next.Version = current.Version + 1
		if change.Status == models.ApplicationRejected {
			next.RejectionReason = change.RejectionReason
			if change.EmployerNotes != "" {
				next.EmployerNotes = change.EmployerNotes
			}
		} else {
			next.RejectionReason = ""
		}

		err = s.store.UpdateApplication(ctx, &next, current.Version)
		if stderrors.Is(err, errors.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		s.obs.RecordTransition(ctx, machine, string(next.Status))
		s.logger.Info("application status changed", map[string]interface{}{
			"applicationId": next.ID,
			"from":          string(current.Status),
			"to":            string(next.Status),
		})

		s.notify(&next)
		return &next, nil
	}

	return nil, errors.NewConcurrentUpdateError(machine, change.ApplicationID)
}

// UpdateNotes replaces employer notes. It never notifies.
func (s *Service) UpdateNotes(ctx context.Context, applicationID, notes string) (*models.Application, error) {
	for attempt := 0; attempt <= s.retries; attempt++ {
		current, err := s.store.GetApplication(ctx, applicationID)
		if err != nil {
			return nil, err
		}
		if current.EmployerNotes == notes {
			return current, nil
		}

		next := *current
		next.EmployerNotes = notes
		next.UpdatedAt = s.now()
		next.Version = current.Version + 1

		err = s.store.UpdateApplication(ctx, &next, current.Version)
		if stderrors.Is(err, errors.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &next, nil
	}
	return nil, errors.NewConcurrentUpdateError(machine, applicationID)
}

// admit checks the posting and snapshots the match score. A candidate with
// no stored profile gets no score.
func (s *Service) admit(ctx context.Context, req *models.NewApplication) error {
	posting, err := s.jobs.GetJob(ctx, req.JobID)
	if err != nil {
		return err
	}
	if !posting.IsFirstParty() {
		return errors.NewInvalidInputError("job " + posting.ID + " is aggregated; track it as an interaction")
	}
	if !posting.Active {
		return errors.NewInvalidInputError("job " + posting.ID + " is no longer active")
	}

	req.MatchScore = nil
	if s.profiles == nil || s.scorer == nil {
		return nil
	}
	profile, err := s.profiles.GetProfile(ctx, req.CandidateID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	res, err := s.scorer.Score(*profile, *posting)
	if err != nil {
		return err
	}
	score := res.Score
	req.MatchScore = &score
	return nil
}

// Get returns the application or an ErrNotFound error.
func (s *Service) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return s.store.GetApplication(ctx, applicationID)
}

// Silent returns a Service over the same store that never notifies. Callers
// whose workflow delivers notifications in a separate step use it so the
// candidate hears about each change once.
func (s *Service) Silent() *Service {
	quiet := *s
	quiet.notifier = nil
	return &quiet
}

// Close waits for in-flight notifications until ctx is done.
func (s *Service) Close(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Close(ctx)
}

func (s *Service) notify(app *models.Application) {
	if s.notifier == nil {
		return
	}
	n := models.StatusNotification{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
		JobID:         app.JobID,
		Status:        app.Status,
		OccurredAt:    app.UpdatedAt,
	}
	if app.Status == models.ApplicationRejected {
		n.RejectionReason = app.RejectionReason
	}
	s.notifier.Dispatch(n)
}
