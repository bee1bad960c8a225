// internal/api/router_test.go
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/application"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/engine/feed"
	"trade-match-engine/internal/engine/interaction"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	apps    *application.Service

	mu    sync.Mutex
	notes []models.StatusNotification
}

func setupAPI(t *testing.T, checks map[string]HealthCheck) *testEnv {
	log := logger.NewTestLogger(t)
	store := memory.New()
	env := &testEnv{store: store}

	dispatcher := application.DispatcherFunc(func(ctx context.Context, n models.StatusNotification) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.notes = append(env.notes, n)
		return nil
	})
	scorer := scoring.New(log)
	env.apps = application.NewService(store, application.NewNotifier(dispatcher, log, 4, time.Second, nil), log,
		application.WithAdmission(store, store, scorer))

	env.handler = NewRouter(Deps{
		Scorer:       scorer,
		Feed:         feed.NewBuilder(store, store, store, scorer, log),
		Interactions: interaction.NewService(store, log),
		Applications: env.apps,
		Logger:       log,
		Checks:       checks,
	})

	require.NoError(t, store.UpsertProfile(context.Background(), &models.CandidateProfile{
		ID:              "c1",
		YearsExperience: 5,
		Processes:       attributes.NewTagSet("SMAW", "GMAW"),
		Positions:       attributes.NewTagSet("3G"),
	}))
	store.PutJob(models.JobPosting{ID: "pipe", Title: "Pipeline Welder", Source: "indeed", Active: true,
		JobRequirement: models.JobRequirement{
			MinExperience:          3,
			RequiredProcesses:      attributes.NewTagSet("SMAW", "GTAW"),
			RequiredPositions:      attributes.NewTagSet("3G"),
			RequiredCertifications: attributes.NewTagSet("CWI"),
		}})
	store.PutJob(models.JobPosting{ID: "tig", Title: "TIG Welder", Source: models.SourceFirstParty, Active: true,
		JobRequirement: models.JobRequirement{RequiredProcesses: attributes.NewTagSet("GTAW")}})
	store.PutJob(models.JobPosting{ID: "open", Title: "Helper", Source: "indeed", Active: true})
	store.PutJob(models.JobPosting{ID: "closed", Title: "Fitter", Source: models.SourceFirstParty, Active: false})

	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) drain(t *testing.T) []models.StatusNotification {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.apps.Close(ctx))
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.StatusNotification(nil), e.notes...)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

// ==========================
// Score / rank / feed
// ==========================

func TestScoreEndpoint(t *testing.T) {
	env := setupAPI(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/score", `{
		"candidate": {"id": "c1", "yearsExperience": 5, "processes": ["SMAW","GMAW"], "positions": ["3G"]},
		"job": {"id": "j1", "title": "Pipeline Welder", "minExperience": 3,
			"requiredProcesses": ["SMAW","GTAW"], "requiredPositions": ["3G"], "requiredCertifications": ["CWI"]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 62, res.Score)
	assert.Equal(t, "Fair Match", res.Band)
}

func TestScoreEndpoint_BadBody(t *testing.T) {
	env := setupAPI(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/score", `{"candidate":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestRankEndpoint(t *testing.T) {
	env := setupAPI(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/rank", `{
		"rows": [
			{"job": {"id": "a", "title": "A"}, "match": {"score": 40}},
			{"job": {"id": "b", "title": "B"}, "match": {"score": 90}},
			{"job": {"id": "c", "title": "C"}}
		],
		"filter": {"sortBy": "match"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Rows []struct {
			Job models.JobPosting `json:"job"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	ids := []string{}
	for _, r := range out.Rows {
		ids = append(ids, r.Job.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	rec = env.do(t, http.MethodPost, "/v1/rank", `{"rows": [], "filter": {"sortBy": "salary"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.ErrCodeInvalidFilterFormat), errorCode(t, rec))
}

func TestFeedEndpoint(t *testing.T) {
	env := setupAPI(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
		want   []string
	}{
		{"by match", "?sortBy=match", http.StatusOK, []string{"pipe", "open", "tig"}},
		{"good only", "?goodOnly=true", http.StatusOK, []string{}},
		{"source filter", "?source=indeed&sortBy=match", http.StatusOK, []string{"pipe", "open"}},
		{"limit", "?sortBy=match&limit=1", http.StatusOK, []string{"pipe"}},
		{"bad bool", "?goodOnly=maybe", http.StatusBadRequest, nil},
		{"bad limit", "?limit=ten", http.StatusBadRequest, nil},
		{"bad sort", "?sortBy=salary", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/candidates/c1/feed"+tt.query, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Equal(t, string(errors.ErrCodeInvalidFilterFormat), errorCode(t, rec))
				return
			}
			var out feed.Feed
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			ids := []string{}
			for _, r := range out.Rows {
				ids = append(ids, r.Job.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// ==========================
// Interactions
// ==========================

func TestInteractionEndpoints(t *testing.T) {
	env := setupAPI(t, nil)
	base := "/v1/candidates/c1/jobs/pipe/interaction"

	rec := env.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/save", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, base+"/applied", `{"notes": "sent resume"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var it models.Interaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	assert.Equal(t, models.InteractionApplied, it.Status)
	assert.Equal(t, "sent resume", it.Notes)

	rec = env.do(t, http.MethodPost, base+"/not-interested", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(errors.ErrCodeInvalidTransition), errorCode(t, rec))

	rec = env.do(t, http.MethodPut, base+"/notes", `{"notes": "called back"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	assert.Equal(t, models.InteractionApplied, it.Status)
	assert.Equal(t, "called back", it.Notes)
}

// ==========================
// Applications
// ==========================

func TestApplicationEndpoints(t *testing.T) {
	env := setupAPI(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/applications", `{"candidateId": "c1", "jobId": "tig", "coverMessage": "hi", "matchScore": 95}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app models.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, models.ApplicationNew, app.Status)
	require.NotNil(t, app.MatchScore)
	assert.Equal(t, 0, *app.MatchScore, "score comes from the stored profile, not the request")

	for _, jobID := range []string{"pipe", "closed"} {
		rec = env.do(t, http.MethodPost, "/v1/applications", `{"candidateId": "c1", "jobId": "`+jobID+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, jobID)
		assert.Equal(t, string(errors.ErrCodeInvalidInput), errorCode(t, rec))
	}
	rec = env.do(t, http.MethodPost, "/v1/applications", `{"candidateId": "c1", "jobId": "nothing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/applications", `{"candidateId": "c1", "jobId": "tig"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(errors.ErrCodeDuplicateApplication), errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/applications", `{"jobId": "tig"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/v1/applications/" + app.ID
	rec = env.do(t, http.MethodPost, path+"/status", `{"status": "rejected", "rejectionReason": "needs CWI", "employerNotes": "revisit in spring"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, "needs CWI", app.RejectionReason)

	rec = env.do(t, http.MethodPost, path+"/status", `{"status": "new"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(errors.ErrCodeInvalidTransition), errorCode(t, rec))

	rec = env.do(t, http.MethodPut, path+"/notes", `{"notes": "strong welder"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, "strong welder", app.EmployerNotes)
	assert.Equal(t, models.ApplicationRejected, app.Status)

	rec = env.do(t, http.MethodGet, "/v1/applications/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	notes := env.drain(t)
	require.Len(t, notes, 1)
	assert.Equal(t, models.ApplicationRejected, notes[0].Status)
	assert.Equal(t, "needs CWI", notes[0].RejectionReason)
}

// ==========================
// Health / metrics / mapping
// ==========================

func TestHealth(t *testing.T) {
	env := setupAPI(t, map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env = setupAPI(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return stderrors.New("connection refused") },
	})
	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetrics(t *testing.T) {
	env := setupAPI(t, nil)
	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeInvalidTransition, http.StatusConflict},
		{errors.ErrCodeDuplicateApplication, http.StatusConflict},
		{errors.ErrCodeConcurrentUpdate, http.StatusConflict},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeInvalidFilterFormat, http.StatusBadRequest},
		{errors.ErrCodeInvariantViolation, http.StatusInternalServerError},
		{errors.ErrCodeSearchTimeout, http.StatusGatewayTimeout},
		{errors.ErrCodeSearchQueryFailed, http.StatusBadGateway},
		{errors.ErrCodeDatabaseQueryFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
