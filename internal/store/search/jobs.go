// Package search reads job postings from the Elasticsearch job index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/models"
)

const (
	DefaultIndex = "jobs"
	maxSize      = 500
)

// jobDocument is the indexed shape of a posting.
type jobDocument struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Company                string     `json:"company"`
	Location               string     `json:"location,omitempty"`
	Source                 string     `json:"source,omitempty"`
	ExternalURL            string     `json:"external_url,omitempty"`
	PostedAt               *time.Time `json:"posted_at,omitempty"`
	PayDisplay             string     `json:"pay_display,omitempty"`
	PayMin                 float64    `json:"pay_min,omitempty"`
	PayMax                 float64    `json:"pay_max,omitempty"`
	PayPeriod              string     `json:"pay_period,omitempty"`
	Active                 bool       `json:"active"`
	MinExperience          float64    `json:"min_experience,omitempty"`
	RequiredProcesses      []string   `json:"required_processes,omitempty"`
	RequiredPositions      []string   `json:"required_positions,omitempty"`
	RequiredCertifications []string   `json:"required_certifications,omitempty"`
}

func (d jobDocument) posting(fallbackID string) models.JobPosting {
	id := d.ID
	if id == "" {
		id = fallbackID
	}
	job := models.JobPosting{
		ID:          id,
		Title:       d.Title,
		Company:     d.Company,
		Location:    d.Location,
		Source:      d.Source,
		ExternalURL: d.ExternalURL,
		PostedAt:    d.PostedAt,
		PayDisplay:  d.PayDisplay,
		Active:      d.Active,
		JobRequirement: models.JobRequirement{
			MinExperience:          d.MinExperience,
			RequiredProcesses:      attributes.NewTagSet(d.RequiredProcesses...),
			RequiredPositions:      attributes.NewTagSet(d.RequiredPositions...),
			RequiredCertifications: attributes.NewTagSet(d.RequiredCertifications...),
		},
	}
	if d.PayMin > 0 || d.PayMax > 0 {
		job.Pay = &attributes.PayRange{Min: d.PayMin, Max: d.PayMax, Period: d.PayPeriod}
	}
	return job
}

func documentFor(job models.JobPosting) jobDocument {
	d := jobDocument{
		ID:                     job.ID,
		Title:                  job.Title,
		Company:                job.Company,
		Location:               job.Location,
		Source:                 job.Source,
		ExternalURL:            job.ExternalURL,
		PostedAt:               job.PostedAt,
		PayDisplay:             job.PayDisplay,
		Active:                 job.Active,
		MinExperience:          job.MinExperience,
		RequiredProcesses:      job.RequiredProcesses,
		RequiredPositions:      job.RequiredPositions,
		RequiredCertifications: job.RequiredCertifications,
	}
	if job.Pay != nil {
		d.PayMin, d.PayMax, d.PayPeriod = job.Pay.Min, job.Pay.Max, job.Pay.Period
	}
	return d
}

type JobIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewJobIndex(client *elasticsearch.Client, index string, log logger.Logger) *JobIndex {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &JobIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "job-index", "index": index}),
	}
}

// buildQuery turns a JobQuery into a bool query. Text matching is left to
// the index; the ranker applies the exact filters again.
func buildQuery(q models.JobQuery) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if s := strings.TrimSpace(q.Query); s != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  s,
				"fields": []string{"title^3", "company^2", "location"},
				"type":   "best_fields",
			},
		})
	}
	if s := strings.TrimSpace(q.Location); s != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"location": s},
		})
	}
	if q.Source != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"source": q.Source},
		})
	}
	if q.ActiveOnly {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"active": true},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (j *JobIndex) SearchJobs(ctx context.Context, q models.JobQuery) ([]models.JobPosting, error) {
	size := q.Size
	if size <= 0 || size > maxSize {
		size = maxSize
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(j.index, err)
	}

	res, err := j.client.Search(
		j.client.Search.WithContext(ctx),
		j.client.Search.WithIndex(j.index),
		j.client.Search.WithBody(bytes.NewReader(body)),
		j.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, j.transportError(ctx, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(j.index, fmt.Errorf("search failed: %s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(j.index, err)
	}

	jobs := make([]models.JobPosting, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		var doc jobDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			j.logger.Warn("skipping undecodable job document", map[string]interface{}{
				"docId": hit.ID,
				"error": err,
			})
			continue
		}
		jobs = append(jobs, doc.posting(hit.ID))
	}
	return jobs, nil
}

func (j *JobIndex) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	res, err := j.client.Get(j.index, id, j.client.Get.WithContext(ctx))
	if err != nil {
		return nil, j.transportError(ctx, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError("job", id)
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(j.index, fmt.Errorf("get failed: %s", res.String()))
	}

	var r struct {
		ID     string      `json:"_id"`
		Found  bool        `json:"found"`
		Source jobDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(j.index, err)
	}
	if !r.Found {
		return nil, errors.NewNotFoundError("job", id)
	}
	job := r.Source.posting(r.ID)
	return &job, nil
}

// IndexJob writes a posting and makes it searchable before returning.
func (j *JobIndex) IndexJob(ctx context.Context, job models.JobPosting) error {
	if err := job.Validate(); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	body, err := json.Marshal(documentFor(job))
	if err != nil {
		return errors.NewSearchQueryFailedError(j.index, err)
	}

	res, err := j.client.Index(j.index, bytes.NewReader(body),
		j.client.Index.WithContext(ctx),
		j.client.Index.WithDocumentID(job.ID),
		j.client.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return j.transportError(ctx, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchQueryFailedError(j.index, fmt.Errorf("index failed: %s", res.String()))
	}
	return nil
}

func (j *JobIndex) transportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewSearchTimeoutError(j.index)
	}
	return errors.NewSearchQueryFailedError(j.index, err)
}
