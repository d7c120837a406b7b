package chat

import (
	"bytes"
	"context"
	"encoding/base64"
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
var ErrMissingAPIKey = errors.New("chat: api key is required")

// maxInlineImageBytes bounds how much image data is fetched for inlining.
const maxInlineImageBytes = 20 << 20

// Options configures the chat/vision completion client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against an OpenAI-compatible chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Message is a single conversation turn submitted to the completion endpoint.
type Message struct {
	Role     string
	Text     string
	ImageURL string
}

// CompletionRequest captures the inputs for one completion call. When
// InlineImages is set, image URLs are fetched and converted to base64 data
// URIs before submission; endpoints that cannot fetch remote URLs (the
// script-generation path) require inline image data.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	InlineImages bool
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
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

// Complete invokes the completion API once and returns the assistant text.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", c.fail(ErrMissingAPIKey)
	}
	if len(req.Messages) == 0 {
		return "", c.fail(errors.New("chat: at least one message is required"))
	}

	payload := chatRequest{Model: c.model}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: sys})
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, c.encodeMessage(ctx, m, req.InlineImages))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", c.fail(fmt.Errorf("chat: encode request: %w", err))
	}
	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", c.fail(fmt.Errorf("chat: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", c.fail(fmt.Errorf("chat: http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(fmt.Errorf("chat: read response: %w", err))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return "", c.fail(fmt.Errorf("chat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
		}
		return "", c.fail(fmt.Errorf("chat: decode response: %w", err))
	}
	if decoded.Error != nil {
		return "", c.fail(fmt.Errorf("chat: %s (%v)", decoded.Error.Message, decoded.Error.Code))
	}
	if resp.StatusCode >= 300 {
		return "", c.fail(fmt.Errorf("chat: status %d", resp.StatusCode))
	}
	if len(decoded.Choices) == 0 {
		return "", c.fail(errors.New("chat: empty choices"))
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", c.fail(errors.New("chat: empty completion"))
	}
	return text, nil
}

func (c *Client) encodeMessage(ctx context.Context, m Message, inline bool) chatMessage {
	if m.ImageURL == "" {
		return chatMessage{Role: m.Role, Content: m.Text}
	}
	imageURL := m.ImageURL
	if inline {
		if dataURI, err := c.fetchDataURI(ctx, m.ImageURL); err != nil {
			// The raw URL still has a chance of being accepted downstream.
			c.logger.Warn().Err(err).Str("image_url", m.ImageURL).Msg("chat: inline image fetch failed, submitting url")
		} else {
			imageURL = dataURI
		}
	}
	return chatMessage{Role: m.Role, Content: []contentPart{
		{Type: "text", Text: m.Text},
		{Type: "image_url", ImageURL: &imageURLPart{URL: imageURL}},
	}}
}

// fetchDataURI downloads the image and re-encodes it as a base64 data URI.
func (c *Client) fetchDataURI(ctx context.Context, imageURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("fetch image: empty body")
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = http.DetectContentType(data)
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func (c *Client) fail(err error) error {
	return &domain.ExternalServiceError{Stage: domain.StageChat, Err: err}
}
