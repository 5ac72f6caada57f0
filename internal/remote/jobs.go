package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/models"
	"go.uber.org/zap"
)

// jobDoc is the wire shape of one job record.
type jobDoc struct {
	ID         string `json:"id,omitempty"`
	ClientName string `json:"clientName"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	ShootDate  int64  `json:"shootDate"`
	FeeCents   int64  `json:"feeCents"`
	Notes      string `json:"notes"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

func jobToDoc(job *models.Job) jobDoc {
	return jobDoc{
		ID:         job.RemoteID,
		ClientName: job.ClientName,
		Title:      job.Title,
		Location:   job.Location,
		ShootDate:  millisOrZero(job.ShootDate),
		FeeCents:   job.FeeCents,
		Notes:      job.Notes,
		Status:     job.Status,
		CreatedAt:  millisOrZero(job.CreatedAt),
		UpdatedAt:  millisOrZero(job.UpdatedAt),
	}
}

func docToJob(doc jobDoc) *models.Job {
	return &models.Job{
		RemoteID:   doc.ID,
		ClientName: doc.ClientName,
		Title:      doc.Title,
		Location:   doc.Location,
		ShootDate:  timeOrZero(doc.ShootDate),
		FeeCents:   doc.FeeCents,
		Notes:      doc.Notes,
		Status:     doc.Status,
		CreatedAt:  timeOrZero(doc.CreatedAt),
		UpdatedAt:  timeOrZero(doc.UpdatedAt),
	}
}

func millisOrZero(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func timeOrZero(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}

// JobsCollection exposes the remote jobs collection.
type JobsCollection struct {
	client *Client
}

// Jobs returns the jobs collection view.
func (c *Client) Jobs() *JobsCollection {
	return &JobsCollection{client: c}
}

// List fetches all remote jobs. Items that fail to decode are logged and
// skipped; one bad record must not hide the rest.
func (j *JobsCollection) List(ctx context.Context) ([]*models.Job, error) {
	body, err := j.client.doRequest(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode jobs list: %w", err)
	}

	jobs := make([]*models.Job, 0, len(items))
	for _, item := range items {
		var doc jobDoc
		if err := json.Unmarshal(item, &doc); err != nil || doc.ID == "" {
			j.client.log.Warn("skipping malformed remote job", zap.Error(err))
			continue
		}
		jobs = append(jobs, docToJob(doc))
	}
	return jobs, nil
}

// Create uploads a new job and returns the provider-assigned id.
func (j *JobsCollection) Create(ctx context.Context, job *models.Job) (string, error) {
	doc := jobToDoc(job)
	doc.ID = ""
	body, err := j.client.doRequest(ctx, http.MethodPost, "/jobs", doc)
	if err != nil {
		return "", err
	}
	return decodeCreateResponse(body)
}

// Update overwrites the remote record identified by the job's remote id.
func (j *JobsCollection) Update(ctx context.Context, job *models.Job) error {
	if job.RemoteID == "" {
		return fmt.Errorf("job has no remote id")
	}
	_, err := j.client.doRequest(ctx, http.MethodPut, "/jobs/"+url.PathEscape(job.RemoteID), jobToDoc(job))
	return err
}

// Delete removes the remote record by id.
func (j *JobsCollection) Delete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("remote id is required")
	}
	_, err := j.client.doRequest(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(remoteID), nil)
	return err
}
