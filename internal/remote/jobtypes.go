package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shuttertrack/shuttertrack/internal/models"
	"go.uber.org/zap"
)

type jobTypeDoc struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	BaseFee   int64  `json:"baseFee"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func jobTypeToDoc(jobType *models.JobType) jobTypeDoc {
	return jobTypeDoc{
		ID:        jobType.RemoteID,
		Name:      jobType.Name,
		BaseFee:   jobType.BaseFee,
		CreatedAt: millisOrZero(jobType.CreatedAt),
		UpdatedAt: millisOrZero(jobType.UpdatedAt),
	}
}

func docToJobType(doc jobTypeDoc) *models.JobType {
	return &models.JobType{
		RemoteID:  doc.ID,
		Name:      doc.Name,
		BaseFee:   doc.BaseFee,
		CreatedAt: timeOrZero(doc.CreatedAt),
		UpdatedAt: timeOrZero(doc.UpdatedAt),
	}
}

// JobTypesCollection exposes the remote job-types collection.
type JobTypesCollection struct {
	client *Client
}

// JobTypes returns the job-types collection view.
func (c *Client) JobTypes() *JobTypesCollection {
	return &JobTypesCollection{client: c}
}

// List fetches all remote job types, skipping malformed records.
func (j *JobTypesCollection) List(ctx context.Context) ([]*models.JobType, error) {
	body, err := j.client.doRequest(ctx, http.MethodGet, "/job-types", nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode job types list: %w", err)
	}

	jobTypes := make([]*models.JobType, 0, len(items))
	for _, item := range items {
		var doc jobTypeDoc
		if err := json.Unmarshal(item, &doc); err != nil || doc.ID == "" {
			j.client.log.Warn("skipping malformed remote job type", zap.Error(err))
			continue
		}
		jobTypes = append(jobTypes, docToJobType(doc))
	}
	return jobTypes, nil
}

// Create uploads a new job type and returns the provider-assigned id.
func (j *JobTypesCollection) Create(ctx context.Context, jobType *models.JobType) (string, error) {
	doc := jobTypeToDoc(jobType)
	doc.ID = ""
	body, err := j.client.doRequest(ctx, http.MethodPost, "/job-types", doc)
	if err != nil {
		return "", err
	}
	return decodeCreateResponse(body)
}

// Update overwrites the remote record identified by the job type's remote id.
func (j *JobTypesCollection) Update(ctx context.Context, jobType *models.JobType) error {
	if jobType.RemoteID == "" {
		return fmt.Errorf("job type has no remote id")
	}
	_, err := j.client.doRequest(ctx, http.MethodPut, "/job-types/"+url.PathEscape(jobType.RemoteID), jobTypeToDoc(jobType))
	return err
}

// Delete removes the remote record by id.
func (j *JobTypesCollection) Delete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("remote id is required")
	}
	_, err := j.client.doRequest(ctx, http.MethodDelete, "/job-types/"+url.PathEscape(remoteID), nil)
	return err
}
