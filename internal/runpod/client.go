// Package runpod provides a client for RunPod serverless inference
// endpoints. It supports submitting generation jobs and polling them to a
// terminal state.
//
// A RunPod job is asynchronous:
//  1. POST /run submits the input and returns an opaque job ID
//  2. GET /status/{id} reports IN_QUEUE, IN_PROGRESS, COMPLETED, FAILED,
//     or CANCELLED, plus the output payload once completed
//
// The client requires the endpoint base URL and a bearer API key, typically
// loaded from the environment or SSM Parameter Store at Lambda cold start.
package runpod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/your-org/transcript-summarizer/internal/poll"
)

// Job states reported by the RunPod API.
const (
	StateQueued     = "IN_QUEUE"
	StateInProgress = "IN_PROGRESS"
	StateCompleted  = "COMPLETED"
	StateFailed     = "FAILED"
	StateCancelled  = "CANCELLED"
)

// ErrJobFailed is returned when the remote job reaches FAILED or CANCELLED.
var ErrJobFailed = errors.New("runpod job failed")

// Settings configures a Client.
type Settings struct {
	// Endpoint is the base URL, e.g. https://api.runpod.ai/v2/<endpoint-id>.
	Endpoint string
	// APIKey is the bearer credential sent on every request.
	APIKey string

	// SubmitTimeout bounds the /run call; StatusTimeout bounds each
	// /status call.
	SubmitTimeout time.Duration
	StatusTimeout time.Duration

	// PollInterval and PollDeadline control Wait: one status check per
	// interval until the deadline's attempt budget is spent.
	PollInterval time.Duration
	PollDeadline time.Duration
}

// Client talks to a single RunPod serverless endpoint.
type Client struct {
	http     *resty.Client
	settings Settings
	sleeper  poll.Sleeper
}

// NewClient creates a RunPod endpoint client.
func NewClient(s Settings) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(s.Endpoint, "/")).
		SetAuthToken(s.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:     httpClient,
		settings: s,
		sleeper:  poll.Timer,
	}
}

// GenerationInput is the model input submitted with a job.
type GenerationInput struct {
	Prompt       string  `json:"prompt"`
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

// runRequest is the /run request envelope.
type runRequest struct {
	Input GenerationInput `json:"input"`
}

// JobStatus is the response envelope shared by /run and /status/{id}.
type JobStatus struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// errDetail renders the API's error field, which may be a bare string or a
// structured object depending on the worker.
func (r *JobStatus) errDetail() string {
	if len(r.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	return string(r.Error)
}

// Run submits a generation job and returns its opaque job ID.
func (c *Client) Run(ctx context.Context, input GenerationInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.SubmitTimeout)
	defer cancel()

	log.Debug().Int("promptLength", len(input.Prompt)).Int("maxNewTokens", input.MaxNewTokens).Msg("Submitting RunPod job")

	var result JobStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(runRequest{Input: input}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/run")
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit job: endpoint returned status %d (body: %s)",
			resp.StatusCode(), truncate(resp.String(), 200))
	}
	if result.ID == "" {
		return "", fmt.Errorf("submit job: endpoint did not return a job ID (body: %s)",
			truncate(resp.String(), 200))
	}

	log.Info().Str("jobId", result.ID).Str("status", result.Status).Msg("RunPod job initiated")
	return result.ID, nil
}

// Status queries the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.StatusTimeout)
	defer cancel()

	var result JobStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		ForceContentType("application/json").
		Get("/status/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("job status request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("job status: endpoint returned status %d", resp.StatusCode())
	}
	return &result, nil
}

// Wait polls job status at the configured fixed interval until the job
// completes, fails, or the deadline's attempt budget is spent. On
// completion it returns the raw output payload. A job still running when
// the deadline fires is abandoned; no cancellation request is issued.
//
// Transient status-request errors are logged and polling continues, so a
// single dropped poll does not abort a long-running job.
func (c *Client) Wait(ctx context.Context, jobID string) (json.RawMessage, error) {
	var output json.RawMessage

	err := poll.Until(ctx, c.sleeper, c.settings.PollInterval, c.settings.PollDeadline,
		func(ctx context.Context, attempt int) (bool, error) {
			status, err := c.Status(ctx, jobID)
			if err != nil {
				log.Warn().Err(err).Str("jobId", jobID).Int("attempt", attempt).Msg("Job status poll error, retrying")
				return false, nil
			}

			switch status.Status {
			case StateCompleted:
				log.Debug().Str("jobId", jobID).Int("attempt", attempt).Msg("RunPod job completed")
				output = status.Output
				return true, nil
			case StateFailed, StateCancelled:
				if detail := status.errDetail(); detail != "" {
					return false, fmt.Errorf("%w: job %s reported %s: %s", ErrJobFailed, jobID, status.Status, detail)
				}
				return false, fmt.Errorf("%w: job %s reported %s", ErrJobFailed, jobID, status.Status)
			case StateQueued, StateInProgress:
				log.Debug().Str("jobId", jobID).Str("status", status.Status).Int("attempt", attempt).Msg("RunPod job still running")
			default:
				log.Warn().Str("jobId", jobID).Str("status", status.Status).Msg("Unknown job status")
			}
			return false, nil
		})
	if errors.Is(err, poll.ErrDeadline) {
		return nil, fmt.Errorf("job %s: %w after %s (job abandoned)", jobID, poll.ErrDeadline, c.settings.PollDeadline)
	}
	if err != nil {
		return nil, err
	}
	return output, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
