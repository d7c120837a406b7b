package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("image: api key is required")

// Options configures the DashScope image generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultSize    string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope multimodal generation API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	defaultSize string
	httpClient  *http.Client
	logger      *infra.Logger
}

// GenerateRequest captures the inputs for one image synthesis call. The
// reference product image anchors the generation.
type GenerateRequest struct {
	Prompt   string
	ImageURL string
	Size     string
}

// Asset is the normalized result: the provider's ephemeral URL plus the
// downloaded bytes, ready for re-hosting.
type Asset struct {
	URL    string
	Data   []byte
	Format string
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type generationParams struct {
	Size string `json:"size,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
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
		model = "qwen-image-plus"
	}
	defaultSize := strings.TrimSpace(opts.DefaultSize)
	if defaultSize == "" {
		defaultSize = "1328*1328"
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
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		defaultSize: defaultSize,
		httpClient:  httpClient,
		logger:      logger,
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

// Generate invokes the API once and returns a single downloaded image asset.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if !c.HasCredentials() {
		return nil, c.fail(ErrMissingAPIKey)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, c.fail(errors.New("image: prompt is required"))
	}

	content := []generationContent{{Text: prompt}}
	if img := strings.TrimSpace(req.ImageURL); img != "" {
		content = append(content, generationContent{Image: img})
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = c.defaultSize
	}
	payload := generationRequest{
		Model: c.model,
		Input: generationInput{
			Messages: []generationMessage{{Role: "user", Content: content}},
		},
		Parameters: generationParams{Size: size},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(fmt.Errorf("image: encode request: %w", err))
	}
	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(fmt.Errorf("image: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(fmt.Errorf("image: http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("image: read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, c.fail(fmt.Errorf("image: %s (%s)", detail.Message, detail.Code))
		}
		return nil, c.fail(fmt.Errorf("image: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, c.fail(fmt.Errorf("image: decode response: %w", err))
	}
	if decoded.Code != "" {
		return nil, c.fail(fmt.Errorf("image: %s (%s)", decoded.Message, decoded.Code))
	}
	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return nil, c.fail(errors.New("image: empty image url"))
	}

	data, format, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, c.fail(err)
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Str("url", imageURL).
		Msg("image: generated asset")
	return &Asset{URL: imageURL, Data: data, Format: format}, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("image: invalid image url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("image: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("image: read download: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}

func firstImageURL(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" {
				return u
			}
		}
	}
	return ""
}

func (c *Client) fail(err error) error {
	return &domain.ExternalServiceError{Stage: domain.StageImage, Err: err}
}
