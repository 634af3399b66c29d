package poller

import (
	"context"
	"fmt"
	"time"

	"learnflow/internal/job"
	"learnflow/internal/models"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPFetcher reads status documents from the API.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

func (f *HTTPFetcher) FetchStatus(ctx context.Context, projectID string) (models.JobStatus, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("id", projectID).
		Get("/projects/{id}/status")
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("request status: %w", err)
	}
	if resp.IsError() {
		return models.JobStatus{}, fmt.Errorf("status endpoint returned %d", resp.StatusCode())
	}
	var st models.JobStatus
	if err := json.Unmarshal(resp.Body(), &st); err != nil {
		return models.JobStatus{}, fmt.Errorf("decode status: %w", err)
	}
	if st.Status == "" || st.Step == "" {
		return models.JobStatus{}, fmt.Errorf("decode status: missing step or status")
	}
	return st, nil
}

// StoreFetcher reads status documents straight from the tracker, for in-process callers.
type StoreFetcher struct {
	Tracker *job.Tracker
}

func (f StoreFetcher) FetchStatus(ctx context.Context, projectID string) (models.JobStatus, error) {
	return f.Tracker.Status(ctx, projectID)
}
