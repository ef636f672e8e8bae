// Package queue talks to the job queue API: polling for pending jobs and
// reporting their lifecycle back.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// Job is a queue entry, as served by the jobs endpoint.
type Job struct {
	URL       string `json:"url"`
	Repo      string `json:"repo"`
	Tag       string `json:"tag"`
	Backend   string `json:"backend"`
	DB        string `json:"db"`
	Operation string `json:"operation"`
	Started   bool   `json:"started"`

	StatusCode    *int   `json:"status_code"`
	StatusMessage string `json:"status_message,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
}

// jobList is the paginated list response.
type jobList struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Job   `json:"results"`
}

// Client is an authenticated job queue client. Transient HTTP failures are
// retried with backoff.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	username string
	password string
	logger   *slog.Logger
}

// NewClient creates a queue client for the given endpoint with basic auth
// credentials.
func NewClient(endpoint, username, password string, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil

	return &Client{
		http:     rc,
		endpoint: endpoint,
		username: username,
		password: password,
		logger:   logger,
	}
}

// PendingJobs fetches the job list and returns the jobs not yet started,
// following pagination.
func (c *Client) PendingJobs(ctx context.Context) ([]Job, error) {
	var pending []Job

	url := c.endpoint
	for url != "" {
		list, err := c.fetchPage(ctx, url)
		if err != nil {
			return nil, err
		}
		for _, job := range list.Results {
			if !job.Started {
				pending = append(pending, job)
			}
		}
		url = ""
		if list.Next != nil {
			url = *list.Next
		}
	}

	return pending, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (*jobList, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building job list request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching job list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching job list: unexpected status %s", resp.Status)
	}

	var list jobList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding job list: %w", err)
	}
	return &list, nil
}

// MarkStarted reports that a job has been picked up.
func (c *Client) MarkStarted(ctx context.Context, job Job) error {
	return c.patch(ctx, job.URL, map[string]any{"started": true})
}

// ReportSuccess reports a completed job with its output path.
func (c *Client) ReportSuccess(ctx context.Context, job Job, outputPath string) error {
	return c.patch(ctx, job.URL, map[string]any{
		"status_code": 0,
		"output_path": outputPath,
	})
}

// ReportFailure reports a failed job with its status code and a message
// already cleared for reporting.
func (c *Client) ReportFailure(ctx context.Context, job Job, code int, message string) error {
	return c.patch(ctx, job.URL, map[string]any{
		"status_code":    code,
		"status_message": message,
	})
}

func (c *Client) patch(ctx context.Context, url string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding job update: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building job update request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("updating job: unexpected status %s", resp.Status)
	}

	c.logger.Debug("job updated", "url", url)
	return nil
}
