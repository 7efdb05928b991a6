package wanx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wanx/internal/domain"
	"wanx/internal/infra"
)

const (
	submitPath = "/api/v1/services/aigc/text2image/image-synthesis"
	tasksPath  = "/api/v1/tasks/"

	defaultPollInterval = 2 * time.Second
	unknownFailure      = "unknown error"
)

// ErrMissingCredential indicates a call was attempted without an API key.
var ErrMissingCredential error = &domain.ConfigError{Key: "DASHSCOPE_API_KEY", Reason: "is required"}

// Options configures the DashScope Wanxiang client.
type Options struct {
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	PollInterval   time.Duration
	Clock          Clock
	Logger         *infra.Logger
}

// Client submits text-to-image tasks and tracks them to completion.
type Client struct {
	transport    *Transport
	model        string
	pollInterval time.Duration
	clock        Clock
	logger       *infra.Logger
}

type submitRequest struct {
	Model      string       `json:"model"`
	Input      submitInput  `json:"input"`
	Parameters submitParams `json:"parameters"`
}

type submitInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type submitParams struct {
	Size string `json:"size"`
	N    int    `json:"n"`
	Seed *int   `json:"seed,omitempty"`
}

// taskEnvelope covers both the submission acknowledgment and the task query
// response; the provider shares the shape.
type taskEnvelope struct {
	RequestID string `json:"request_id"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		Results    []struct {
			URL     string `json:"url"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"results"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = infra.DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = infra.DefaultModel
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		transport:    NewTransport(baseURL, opts.HTTPClient, opts.RequestTimeout, logger),
		model:        model,
		pollInterval: interval,
		clock:        clock,
		logger:       logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Submit creates one generation task and returns its handle. It is never
// retried.
func (c *Client) Submit(ctx context.Context, credential string, req domain.GenerationRequest) (domain.JobHandle, error) {
	if strings.TrimSpace(credential) == "" {
		return "", ErrMissingCredential
	}
	payload := submitRequest{
		Model: c.model,
		Input: submitInput{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
		},
		Parameters: submitParams{
			Size: req.WireSize(),
			N:    req.Count,
		},
	}
	if req.Seed > 0 {
		seed := req.Seed
		payload.Parameters.Seed = &seed
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("wanx: encode request: %w", err)
	}

	header := authHeader(credential)
	header.Set("Content-Type", "application/json")
	header.Set("X-DashScope-Async", "enable")

	status, raw, err := c.transport.Send(ctx, http.MethodPost, submitPath, header, body)
	if err != nil {
		return "", err
	}
	handle, err := parseSubmission(status, raw)
	if err != nil {
		return "", err
	}
	c.logger.Info().
		Str("task_id", handle.String()).
		Str("model", c.model).
		Str("size", req.Size).
		Int("n", req.Count).
		Msg("wanx: task submitted")
	return handle, nil
}

// parseSubmission classifies the creation response. Business failures arrive
// inside 200 responses, so success requires a 2xx status and a task id.
func parseSubmission(status int, raw []byte) (domain.JobHandle, error) {
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &domain.SubmissionError{Status: status, Raw: string(raw)}
	}
	taskID := strings.TrimSpace(env.Output.TaskID)
	if status < 200 || status >= 300 || taskID == "" {
		return "", &domain.SubmissionError{
			Status:  status,
			Code:    firstNonEmpty(env.Code, env.Output.Code),
			Message: firstNonEmpty(env.Message, env.Output.Message),
			Raw:     string(raw),
		}
	}
	return domain.JobHandle(taskID), nil
}

// Status queries the task once.
func (c *Client) Status(ctx context.Context, credential string, handle domain.JobHandle) (*domain.JobStatus, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	path := tasksPath + url.PathEscape(handle.String())
	status, raw, err := c.transport.Send(ctx, http.MethodGet, path, authHeader(credential), nil)
	if err != nil {
		return nil, err
	}
	return parseStatus(handle, status, raw)
}

func parseStatus(handle domain.JobHandle, status int, raw []byte) (*domain.JobStatus, error) {
	var env taskEnvelope
	decodeErr := json.Unmarshal(raw, &env)
	if status < 200 || status >= 300 {
		apiErr := &domain.APIError{Status: status}
		if decodeErr == nil {
			apiErr.Code = firstNonEmpty(env.Code, env.Output.Code)
			apiErr.Message = firstNonEmpty(env.Message, env.Output.Message)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, &domain.ProtocolError{URL: tasksPath + handle.String(), Reason: "decode task status: " + decodeErr.Error()}
	}

	snapshot := &domain.JobStatus{
		Handle:    handle,
		State:     domain.ParseJobState(env.Output.TaskStatus),
		RawState:  env.Output.TaskStatus,
		Code:      firstNonEmpty(env.Output.Code, env.Code),
		Message:   firstNonEmpty(env.Output.Message, env.Message),
		RequestID: env.RequestID,
	}
	if snapshot.State == domain.JobStateSucceeded {
		snapshot.Artifacts = make([]domain.ArtifactRef, 0, len(env.Output.Results))
		for _, result := range env.Output.Results {
			snapshot.Artifacts = append(snapshot.Artifacts, domain.ArtifactRef{URL: strings.TrimSpace(result.URL)})
		}
	}
	return snapshot, nil
}

// WaitForTerminal polls the task until it succeeds, fails, or deadline
// elapses. The elapsed time is checked before every query; once it reaches
// the deadline no further request is made.
func (c *Client) WaitForTerminal(ctx context.Context, credential string, handle domain.JobHandle, deadline time.Duration) (*domain.JobStatus, error) {
	start := c.clock.Now()
	var last domain.JobState
	for attempt := 1; ; attempt++ {
		if elapsed := c.clock.Now().Sub(start); elapsed >= deadline {
			c.logger.Warn().
				Str("task_id", handle.String()).
				Dur("elapsed", elapsed).
				Int("attempts", attempt-1).
				Msg("wanx: deadline exceeded")
			return nil, &domain.TimeoutError{Handle: handle, Deadline: deadline, LastState: last}
		}

		status, err := c.Status(ctx, credential, handle)
		if err != nil {
			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) || !retryableStatus(apiErr.Status) {
				return nil, err
			}
			c.logger.Warn().
				Str("task_id", handle.String()).
				Int("attempt", attempt).
				Int("status", apiErr.Status).
				Str("code", apiErr.Code).
				Msg("wanx: task query throttled or unavailable, retrying")
			if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
				return nil, err
			}
			continue
		}
		c.logger.Debug().
			Str("task_id", handle.String()).
			Int("attempt", attempt).
			Str("task_status", status.RawState).
			Msg("wanx: polled task")
		if status.State != last {
			c.logger.Info().
				Str("task_id", handle.String()).
				Str("from", string(last)).
				Str("to", string(status.State)).
				Str("raw", status.RawState).
				Msg("wanx: task state changed")
			last = status.State
		}

		switch status.State {
		case domain.JobStateSucceeded:
			return status, nil
		case domain.JobStateFailed:
			message := strings.TrimSpace(status.Message)
			if message == "" {
				message = unknownFailure
			}
			return nil, &domain.JobFailedError{Handle: handle, Code: status.Code, Message: message}
		}

		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

// retryableStatus reports whether a failed task query leaves the task worth
// polling again: throttling and server-side errors.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Download fetches an artifact through the client's transport.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	return c.transport.Download(ctx, rawURL)
}

func authHeader(credential string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(credential))
	return header
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
