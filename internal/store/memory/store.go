// Package memory is an in-process store for tests and local runs. It
// honors the same compare-and-set and uniqueness contracts as sqlstore.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/models"
)

type pair struct {
	candidateID string
	jobID       string
}

type Store struct {
	mu           sync.RWMutex
	profiles     map[string]models.CandidateProfile
	contacts     map[string]models.Contact
	jobs         map[string]models.JobPosting
	jobOrder     []string
	interactions map[pair]models.Interaction
	applications map[string]models.Application
	appByPair    map[pair]string
}

func New() *Store {
	return &Store{
		profiles:     make(map[string]models.CandidateProfile),
		contacts:     make(map[string]models.Contact),
		jobs:         make(map[string]models.JobPosting),
		interactions: make(map[pair]models.Interaction),
		applications: make(map[string]models.Application),
		appByPair:    make(map[pair]string),
	}
}

// ==========================
// Profiles, contacts, jobs
// ==========================

func (s *Store) GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[candidateID]
	if !ok {
		return nil, errors.NewNotFoundError("candidate profile", candidateID)
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *models.CandidateProfile) error {
	if err := p.Validate(); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = *p
	return nil
}

func (s *Store) GetContact(ctx context.Context, candidateID string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[candidateID]
	if !ok {
		return nil, errors.NewNotFoundError("contact", candidateID)
	}
	return &c, nil
}

func (s *Store) UpsertContact(ctx context.Context, c *models.Contact) error {
	if c.CandidateID == "" {
		return errors.NewInvalidInputError("candidateId is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.CandidateID] = *c
	return nil
}

// PutJob adds or replaces a posting; insertion order is the search order.
func (s *Store) PutJob(job models.JobPosting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		s.jobOrder = append(s.jobOrder, job.ID)
	}
	s.jobs[job.ID] = job
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job", id)
	}
	return &j, nil
}

// SearchJobs filters like the search index does: case-insensitive
// substring on title, company, location; exact source.
func (s *Store) SearchJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(q.Query)
	location := strings.ToLower(q.Location)
	var out []models.JobPosting
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if q.ActiveOnly && !j.Active {
			continue
		}
		if q.Source != "" && j.Source != q.Source {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(j.Location), location) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(j.Title), query) &&
			!strings.Contains(strings.ToLower(j.Company), query) &&
			!strings.Contains(strings.ToLower(j.Location), query) {
			continue
		}
		out = append(out, j)
		if q.Size > 0 && len(out) == q.Size {
			break
		}
	}
	return out, nil
}

// ==========================
// Interactions
// ==========================

func (s *Store) GetInteraction(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.interactions[pair{candidateID, jobID}]
	if !ok {
		return nil, errors.NewNotFoundError("interaction", candidateID+"/"+jobID)
	}
	return &it, nil
}

// SaveInteraction inserts when expectedVersion is zero, otherwise replaces
// the row only if its version still equals expectedVersion.
func (s *Store) SaveInteraction(ctx context.Context, it *models.Interaction, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{it.CandidateID, it.JobID}
	cur, ok := s.interactions[k]
	if expectedVersion == 0 && ok || expectedVersion != 0 && (!ok || cur.Version != expectedVersion) {
		return errors.NewConcurrentUpdateError("interaction", it.CandidateID+"/"+it.JobID)
	}
	s.interactions[k] = *it
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, candidateID string, jobIDs []string) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Interaction
	for k, it := range s.interactions {
		if k.candidateID == candidateID && wanted(jobIDs, k.jobID) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// ==========================
// Applications
// ==========================

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, errors.NewNotFoundError("application", id)
	}
	return &app, nil
}

func (s *Store) FindApplication(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.appByPair[pair{candidateID, jobID}]
	if !ok {
		return nil, errors.NewNotFoundError("application", candidateID+"/"+jobID)
	}
	app := s.applications[id]
	return &app, nil
}

func (s *Store) InsertApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{app.CandidateID, app.JobID}
	if _, ok := s.appByPair[k]; ok {
		return errors.NewDuplicateApplicationError(app.CandidateID, app.JobID)
	}
	s.applications[app.ID] = *app
	s.appByPair[k] = app.ID
	return nil
}

func (s *Store) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.applications[app.ID]
	if !ok {
		return errors.NewNotFoundError("application", app.ID)
	}
	if cur.Version != expectedVersion {
		return errors.NewConcurrentUpdateError("application", app.ID)
	}
	cur.Status = app.Status
	cur.EmployerNotes = app.EmployerNotes
	cur.RejectionReason = app.RejectionReason
	cur.UpdatedAt = app.UpdatedAt
	cur.Version = app.Version
	s.applications[app.ID] = cur
	return nil
}

func (s *Store) ListApplications(ctx context.Context, candidateID string, jobIDs []string) ([]models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Application
	for _, app := range s.applications {
		if app.CandidateID == candidateID && wanted(jobIDs, app.JobID) {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountApplicationsByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.ApplicationStatus]int)
	for _, app := range s.applications {
		out[app.Status]++
	}
	return out, nil
}

func wanted(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
