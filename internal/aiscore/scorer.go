// Package aiscore produces external match scores with a Gemini model and
// stores them where the feed builder looks them up.
package aiscore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/engine/scoring"
	"trade-match-engine/internal/models"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
)

const systemPrompt = `You rate how well a skilled-trades candidate fits a job.
Reply with a single JSON object and nothing else:
{"score": <integer 0-100>, "reason": "<one sentence>", "missingSkills": ["<tag>", ...]}
Weigh years of experience, welding processes, positions and verified certifications.`

// Generator is the slice of genai.Models the scorer uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Sink receives produced scores; cache.ExternalScores satisfies it.
type Sink interface {
	Put(ctx context.Context, r models.MatchResult) error
}

type Scorer struct {
	gen         Generator
	model       string
	sink        Sink
	timeout     time.Duration
	concurrency int
	logger      logger.Logger
}

type Option func(*Scorer)

func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(gen Generator, model string, sink Sink, log logger.Logger, opts ...Option) *Scorer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	s := &Scorer{
		gen:         gen,
		model:       model,
		sink:        sink,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "ai-scorer", "model": model}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGemini builds a Scorer backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string, sink Sink, log logger.Logger, opts ...Option) (*Scorer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, stderrors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return New(client.Models, model, sink, log, opts...), nil
}

type verdict struct {
	Score         *float64 `json:"score"`
	Reason        string   `json:"reason"`
	MissingSkills []string `json:"missingSkills"`
}

// Score asks the model for a verdict and stores it in the sink when one is
// configured. Any failure is AI_SCORING_FAILED.
func (s *Scorer) Score(ctx context.Context, candidate models.CandidateProfile, job models.JobPosting) (models.MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt, err := buildPrompt(candidate, job)
	if err != nil {
		return models.MatchResult{}, errors.NewAIScoringFailedError(err)
	}

	resp, err := s.gen.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.MatchResult{}, errors.NewTimeoutError("gemini", err)
		}
		return models.MatchResult{}, errors.NewAIScoringFailedError(fmt.Errorf("generate content: %w", err))
	}

	v, err := parseVerdict(responseText(resp))
	if err != nil {
		return models.MatchResult{}, errors.NewAIScoringFailedError(err)
	}

	score := int(math.Round(*v.Score))
	result := models.MatchResult{
		CandidateID:   candidate.ID,
		JobID:         job.ID,
		Score:         score,
		Band:          scoring.BandFor(score).Label(),
		Reason:        strings.TrimSpace(v.Reason),
		MissingSkills: attributes.NewTagSet(v.MissingSkills...),
		Source:        models.ScoreSourceExternal,
	}

	if s.sink != nil {
		if err := s.sink.Put(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ScoreJobs scores every job for one candidate. Individual failures are
// logged and skipped; it returns how many scores were stored.
func (s *Scorer) ScoreJobs(ctx context.Context, candidate models.CandidateProfile, jobs []models.JobPosting) (int, error) {
	stored := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range jobs {
		g.Go(func() error {
			if _, err := s.Score(gctx, candidate, jobs[i]); err != nil {
				s.logger.Warn("ai scoring failed", map[string]interface{}{
					"candidateId": candidate.ID,
					"jobId":       jobs[i].ID,
					"error":       err,
				})
				return nil
			}
			stored[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.NewAIScoringFailedError(err)
	}

	n := 0
	for _, ok := range stored {
		if ok {
			n++
		}
	}
	return n, nil
}

type promptInput struct {
	Candidate struct {
		YearsExperience float64  `json:"yearsExperience"`
		Processes       []string `json:"processes"`
		Positions       []string `json:"positions"`
		Certifications  []string `json:"verifiedCertifications"`
		Location        string   `json:"location,omitempty"`
	} `json:"candidate"`
	Job struct {
		Title                  string   `json:"title"`
		Company                string   `json:"company,omitempty"`
		Location               string   `json:"location,omitempty"`
		Pay                    string   `json:"pay,omitempty"`
		MinExperience          float64  `json:"minExperience"`
		RequiredProcesses      []string `json:"requiredProcesses"`
		RequiredPositions      []string `json:"requiredPositions"`
		RequiredCertifications []string `json:"requiredCertifications"`
	} `json:"job"`
}

func buildPrompt(c models.CandidateProfile, j models.JobPosting) (string, error) {
	var in promptInput
	in.Candidate.YearsExperience = finiteOrZero(c.YearsExperience)
	in.Candidate.Processes = orEmpty(c.Processes)
	in.Candidate.Positions = orEmpty(c.Positions)
	in.Candidate.Certifications = orEmpty(c.VerifiedCertifications())
	in.Candidate.Location = c.Location

	in.Job.Title = j.Title
	in.Job.Company = j.Company
	in.Job.Location = j.Location
	in.Job.Pay = j.PayDisplay
	in.Job.MinExperience = finiteOrZero(j.MinExperience)
	in.Job.RequiredProcesses = orEmpty(j.RequiredProcesses)
	in.Job.RequiredPositions = orEmpty(j.RequiredPositions)
	in.Job.RequiredCertifications = orEmpty(j.RequiredCertifications)

	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return "Rate this match:\n" + string(data), nil
}

func orEmpty(t attributes.TagSet) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// parseVerdict accepts the JSON object bare or inside a ``` fence.
func parseVerdict(text string) (*verdict, error) {
	if text == "" {
		return nil, stderrors.New("empty model response")
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	if v.Score == nil {
		return nil, stderrors.New("verdict has no score")
	}
	if math.IsNaN(*v.Score) || *v.Score < 0 || *v.Score > 100 {
		return nil, fmt.Errorf("verdict score %v outside [0,100]", *v.Score)
	}
	return &v, nil
}
