package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/ranking"
	"trade-match-engine/internal/models"
)

type scoreRequest struct {
	Candidate models.CandidateProfile `json:"candidate"`
	Job       models.JobPosting       `json:"job"`
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Scorer.Score(req.Candidate, req.Job)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rankRequest struct {
	Rows   []ranking.Row      `json:"rows"`
	Filter ranking.FilterSpec `json:"filter"`
}

func (s *server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Filter.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": ranking.Rank(req.Rows, req.Filter)})
}

// filterFromQuery reads ?query=&location=&source=&goodOnly=&hideDismissed=&sortBy=&limit=.
func filterFromQuery(r *http.Request) (ranking.FilterSpec, error) {
	q := r.URL.Query()
	spec := ranking.FilterSpec{
		Query:    q.Get("query"),
		Location: q.Get("location"),
		Source:   q.Get("source"),
		SortBy:   ranking.SortKey(q.Get("sortBy")),
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"goodOnly", &spec.GoodMatchesOnly},
		{"hideDismissed", &spec.HideDismissed},
	}
	for _, f := range flags {
		if v := q.Get(f.name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return spec, errors.NewInvalidFilterFormatError(f.name + " must be a boolean")
			}
			*f.dst = b
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return spec, errors.NewInvalidFilterFormatError("limit must be an integer")
		}
		spec.Limit = n
	}
	return spec, nil
}

func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	spec, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Feed.Build(r.Context(), feed.Request{
		CandidateID: chi.URLParam(r, "candidateID"),
		Filter:      spec,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type interactionAction int

const (
	actionSave interactionAction = iota
	actionApplyClick
	actionApplied
	actionNotInterested
	actionNotes
)

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *server) handleInteraction(action interactionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cid, jid := chi.URLParam(r, "candidateID"), chi.URLParam(r, "jobID")

		var body notesRequest
		if action == actionApplied || action == actionNotes {
			if r.ContentLength != 0 && !decode(w, r, &body) {
				return
			}
		}

		var (
			it  *models.Interaction
			err error
		)
		switch action {
		case actionSave:
			it, err = s.Interactions.Save(ctx, cid, jid)
		case actionApplyClick:
			it, err = s.Interactions.RecordApplyClick(ctx, cid, jid)
		case actionApplied:
			it, err = s.Interactions.MarkApplied(ctx, cid, jid, body.Notes)
		case actionNotInterested:
			it, err = s.Interactions.MarkNotInterested(ctx, cid, jid)
		case actionNotes:
			it, err = s.Interactions.UpdateNotes(ctx, cid, jid, body.Notes)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, it)
	}
}

func (s *server) handleGetInteraction(w http.ResponseWriter, r *http.Request) {
	it, err := s.Interactions.Get(r.Context(), chi.URLParam(r, "candidateID"), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req models.NewApplication
	if !decode(w, r, &req) {
		return
	}
	app, err := s.Applications.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.Applications.Get(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var change models.StatusChange
	if !decode(w, r, &change) {
		return
	}
	change.ApplicationID = chi.URLParam(r, "applicationID")

	app, err := s.Applications.Transition(r.Context(), change)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *server) handleApplicationNotes(w http.ResponseWriter, r *http.Request) {
	var body notesRequest
	if !decode(w, r, &body) {
		return
	}
	app, err := s.Applications.UpdateNotes(r.Context(), chi.URLParam(r, "applicationID"), body.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
