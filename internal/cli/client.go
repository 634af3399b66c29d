package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"learnflow/internal/models"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the learnflow API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout).SetHeader("Accept", "application/json")}
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		var e apiErrorBody
		if json.Unmarshal(resp.Body(), &e) == nil && e.Error.Code != "" {
			return fmt.Errorf("%s %s: %s %s", method, path, e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out struct {
		Projects []models.Project `json:"projects"`
	}
	err := c.do(ctx, resty.MethodGet, "/projects", nil, &out)
	return out.Projects, err
}

func (c *Client) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	var out models.Project
	err := c.do(ctx, resty.MethodPost, "/projects", p, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, resty.MethodDelete, "/projects/"+id, nil, nil)
}

// Start posts cfg as given; keys the server does not receive keep its defaults.
func (c *Client) Start(ctx context.Context, id string, cfg map[string]any) (models.JobStatus, error) {
	var out models.JobStatus
	err := c.do(ctx, resty.MethodPost, "/projects/"+id+"/start", cfg, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, id string) (models.JobStatus, error) {
	var out models.JobStatus
	err := c.do(ctx, resty.MethodGet, "/projects/"+id+"/status", nil, &out)
	return out, err
}

// Upload sends each reader as one part of the "files" field.
func (c *Client) Upload(ctx context.Context, id string, files map[string]io.Reader) ([]models.InputFile, error) {
	req := c.http.R().SetContext(ctx)
	for name, r := range files {
		req.SetFileReader("files", filepath.Base(name), r)
	}
	resp, err := req.Post("/projects/" + id + "/uploads")
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload: status %d: %s", resp.StatusCode(), resp.String())
	}
	var out struct {
		Uploaded []models.InputFile `json:"uploaded"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return out.Uploaded, nil
}
