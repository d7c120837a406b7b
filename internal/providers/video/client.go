package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// TaskStatus is the normalized lifecycle state of an asynchronous video job.
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether further polling is meaningful.
func (s TaskStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// TaskState is the last observed state of a job. The job itself is owned by
// the provider; this system holds only the ID and this snapshot.
type TaskState struct {
	Status   TaskStatus
	VideoURL string
	Message  string
}

// Options configures the asynchronous video generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the DashScope image-to-video API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitRequest struct {
	Model      string       `json:"model"`
	Input      submitInput  `json:"input"`
	Parameters submitParams `json:"parameters"`
}

type submitInput struct {
	Prompt string `json:"prompt"`
	ImgURL string `json:"img_url"`
}

type submitParams struct {
	Resolution   string `json:"resolution,omitempty"`
	PromptExtend bool   `json:"prompt_extend"`
}

type submitResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type statusResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		VideoURL   string `json:"video_url"`
		Message    string `json:"message"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "wan2.2-i2v-plus"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit enqueues an image-to-video job and returns its opaque task ID. The
// submission is fire-and-forget: a response without a task ID fails fast.
func (c *Client) Submit(ctx context.Context, prompt, imageURL string) (string, error) {
	if !c.HasCredentials() {
		return "", c.fail(domain.StageVideoSubmit, ErrMissingAPIKey)
	}
	if strings.TrimSpace(imageURL) == "" {
		return "", c.fail(domain.StageVideoSubmit, errors.New("video: image url is required"))
	}

	payload := submitRequest{
		Model: c.model,
		Input: submitInput{
			Prompt: strings.TrimSpace(prompt),
			ImgURL: imageURL,
		},
		Parameters: submitParams{PromptExtend: true},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", c.fail(domain.StageVideoSubmit, fmt.Errorf("video: encode request: %w", err))
	}

	endpoint := c.baseURL + "/services/aigc/video-generation/video-synthesis"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", c.fail(domain.StageVideoSubmit, fmt.Errorf("video: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-DashScope-Async", "enable")

	var decoded submitResponse
	if err := c.do(httpReq, domain.StageVideoSubmit, &decoded); err != nil {
		return "", err
	}
	if decoded.Code != "" {
		return "", c.fail(domain.StageVideoSubmit, fmt.Errorf("video: %s (%s)", decoded.Message, decoded.Code))
	}
	taskID := strings.TrimSpace(decoded.Output.TaskID)
	if taskID == "" {
		return "", c.fail(domain.StageVideoSubmit, errors.New("video: response missing task id"))
	}
	c.logger.Debug().Str("task_id", taskID).Str("status", decoded.Output.TaskStatus).Msg("video: job submitted")
	return taskID, nil
}

// Status performs a single status check. The caller owns the retry loop.
func (c *Client) Status(ctx context.Context, taskID string) (TaskState, error) {
	if !c.HasCredentials() {
		return TaskState{}, c.fail(domain.StageVideoPoll, ErrMissingAPIKey)
	}
	if strings.TrimSpace(taskID) == "" {
		return TaskState{}, c.fail(domain.StageVideoPoll, errors.New("video: task id is required"))
	}

	endpoint := c.baseURL + "/tasks/" + taskID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TaskState{}, c.fail(domain.StageVideoPoll, fmt.Errorf("video: build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var decoded statusResponse
	if err := c.do(httpReq, domain.StageVideoPoll, &decoded); err != nil {
		return TaskState{}, err
	}
	if decoded.Code != "" {
		return TaskState{}, c.fail(domain.StageVideoPoll, fmt.Errorf("video: %s (%s)", decoded.Message, decoded.Code))
	}
	state := TaskState{
		Status:   normalizeStatus(decoded.Output.TaskStatus),
		VideoURL: decoded.Output.VideoURL,
		Message:  decoded.Output.Message,
	}
	if state.Status == StatusSucceeded && state.VideoURL == "" {
		return TaskState{}, c.fail(domain.StageVideoPoll, errors.New("video: succeeded without video url"))
	}
	return state, nil
}

func (c *Client) do(req *http.Request, stage domain.Stage, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(stage, fmt.Errorf("video: http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(stage, fmt.Errorf("video: read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return c.fail(stage, fmt.Errorf("video: %s (%s)", detail.Message, detail.Code))
		}
		return c.fail(stage, fmt.Errorf("video: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(stage, fmt.Errorf("video: decode response: %w", err))
	}
	return nil
}

func normalizeStatus(raw string) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING":
		return StatusQueued
	case "RUNNING":
		return StatusRunning
	case "SUCCEEDED":
		return StatusSucceeded
	case "FAILED", "CANCELED", "UNKNOWN":
		return StatusFailed
	default:
		return StatusRunning
	}
}

func (c *Client) fail(stage domain.Stage, err error) error {
	return &domain.ExternalServiceError{Stage: stage, Err: err}
}
