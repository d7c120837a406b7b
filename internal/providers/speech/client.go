package speech

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// ErrMissingCredentials indicates the client was configured without app credentials.
var ErrMissingCredentials = errors.New("speech: app id and access token are required")

// codeSuccess is the provider's in-body success code. Any other code is an
// error even when the HTTP status is 200.
const codeSuccess = 3000

// Options configures the text-to-speech client.
type Options struct {
	AppID          string
	AccessToken    string
	Cluster        string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// VoiceConfig selects voice and delivery parameters for one synthesis call.
type VoiceConfig struct {
	VoiceType  string
	SpeedRatio float64
	Encoding   string
}

// Client performs HTTP calls against the speech synthesis API.
type Client struct {
	appID       string
	accessToken string
	cluster     string
	baseURL     string
	httpClient  *http.Client
	logger      *infra.Logger
}

type synthesisRequest struct {
	App     appSection     `json:"app"`
	User    userSection    `json:"user"`
	Audio   audioSection   `json:"audio"`
	Request requestSection `json:"request"`
}

type appSection struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userSection struct {
	UID string `json:"uid"`
}

type audioSection struct {
	VoiceType  string  `json:"voice_type"`
	Encoding   string  `json:"encoding"`
	SpeedRatio float64 `json:"speed_ratio,omitempty"`
}

type requestSection struct {
	ReqID     string `json:"reqid"`
	Text      string `json:"text"`
	Operation string `json:"operation"`
}

type synthesisResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ReqID     string `json:"reqid"`
	Operation string `json:"operation"`
	Data      string `json:"data"`
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
		baseURL = "https://openspeech.bytedance.com/api/v1/tts"
	}
	cluster := strings.TrimSpace(opts.Cluster)
	if cluster == "" {
		cluster = "volcano_tts"
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
		appID:       strings.TrimSpace(opts.AppID),
		accessToken: strings.TrimSpace(opts.AccessToken),
		cluster:     cluster,
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.appID != "" && c.accessToken != ""
}

// Synthesize converts text into audio bytes. Synthesis sits on the critical
// path to the final artifact, so every failure mode surfaces as an error:
// network failures, non-2xx statuses, and non-success codes inside 200 bodies.
func (c *Client) Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, c.fail(ErrMissingCredentials)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, c.fail(errors.New("speech: text is required"))
	}
	voiceType := strings.TrimSpace(voice.VoiceType)
	if voiceType == "" {
		voiceType = "BV700_streaming"
	}
	encoding := voice.Encoding
	if encoding == "" {
		encoding = "mp3"
	}

	reqID := uuid.NewString()
	payload := synthesisRequest{
		App:  appSection{AppID: c.appID, Token: c.accessToken, Cluster: c.cluster},
		User: userSection{UID: reqID},
		Audio: audioSection{
			VoiceType:  voiceType,
			Encoding:   encoding,
			SpeedRatio: voice.SpeedRatio,
		},
		Request: requestSection{ReqID: reqID, Text: text, Operation: "query"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(fmt.Errorf("speech: encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(fmt.Errorf("speech: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer;"+c.accessToken)

	c.logger.Debug().Str("reqid", reqID).Int("text_len", len(text)).Msg("speech: synthesis request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(fmt.Errorf("speech: http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("speech: read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return nil, c.fail(fmt.Errorf("speech: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded synthesisResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, c.fail(fmt.Errorf("speech: decode response: %w", err))
	}
	if decoded.Code != codeSuccess {
		return nil, c.fail(fmt.Errorf("speech: %s (code %d)", decoded.Message, decoded.Code))
	}
	if decoded.Data == "" {
		return nil, c.fail(errors.New("speech: empty audio data"))
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.Data)
	if err != nil {
		return nil, c.fail(fmt.Errorf("speech: decode audio: %w", err))
	}
	return audio, nil
}

func (c *Client) fail(err error) error {
	return &domain.ExternalServiceError{Stage: domain.StageSpeech, Err: err}
}
