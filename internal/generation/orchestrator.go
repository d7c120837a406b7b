package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/chat"
	imageprovider "server/internal/providers/image"
	"server/internal/providers/speech"
	"server/internal/providers/video"
)

// ChatClient produces text completions from conversation turns.
type ChatClient interface {
	Complete(ctx context.Context, req chat.CompletionRequest) (string, error)
}

// SpeechClient converts narration text into audio bytes.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string, voice speech.VoiceConfig) ([]byte, error)
}

// VideoClient submits asynchronous video jobs and reports their state.
type VideoClient interface {
	Submit(ctx context.Context, prompt, imageURL string) (string, error)
	Status(ctx context.Context, taskID string) (video.TaskState, error)
}

// ImageClient synthesizes product images.
type ImageClient interface {
	Generate(ctx context.Context, req imageprovider.GenerateRequest) (*imageprovider.Asset, error)
}

// Transcoder combines a video stream and an audio stream into one file.
type Transcoder interface {
	Mux(ctx context.Context, videoURL, audioURL string) ([]byte, error)
}

// Request carries one generation turn. ContextImageURL is the user-supplied
// product photo anchoring every mode; requests without it are rejected before
// any external call or write.
type Request struct {
	UserID          string
	Prompt          string
	SessionID       string
	ContextImageURL string
	SaveImageURL    string
	Regenerate      bool
	DeleteMessageID string
	ModelID         string
	Locale          string
}

// Result is the payload returned to the caller and mirrored into the
// persisted assistant message.
type Result struct {
	SessionID   string
	MessageID   string
	VideoURL    string
	RawVideoURL string
	AudioURL    string
	ImageURL    string
	Script      string
	Content     string
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Sessions   domain.SessionRepository
	Messages   domain.MessageRepository
	Store      domain.ObjectStore
	Chat       ChatClient
	Speech     SpeechClient
	Video      VideoClient
	Image      ImageClient
	Transcoder Transcoder
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Models lists the model identifiers clients may request. An empty model
	// in the request always passes; anything else must be listed here.
	Models     []string
	VoiceType  string
	PollPolicy PollPolicy
}

// Service orchestrates multi-provider generation and persistence for one user
// request at a time.
type Service struct {
	sessions   domain.SessionRepository
	messages   domain.MessageRepository
	store      domain.ObjectStore
	chat       ChatClient
	speech     SpeechClient
	video      VideoClient
	image      ImageClient
	transcoder Transcoder
	httpClient *http.Client
	logger     *infra.Logger
	models     map[string]struct{}
	voiceType  string
	poll       PollPolicy
}

// NewService constructs the orchestrator.
func NewService(opts Options) *Service {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	models := make(map[string]struct{}, len(opts.Models))
	for _, m := range opts.Models {
		if m = strings.TrimSpace(m); m != "" {
			models[m] = struct{}{}
		}
	}
	poll := opts.PollPolicy
	if poll.Stage == "" {
		poll.Stage = domain.StageVideoPoll
	}
	return &Service{
		sessions:   opts.Sessions,
		messages:   opts.Messages,
		store:      opts.Store,
		chat:       opts.Chat,
		speech:     opts.Speech,
		video:      opts.Video,
		image:      opts.Image,
		transcoder: opts.Transcoder,
		httpClient: httpClient,
		logger:     logger,
		models:     models,
		voiceType:  opts.VoiceType,
		poll:       poll,
	}
}

type narration struct {
	AudioURL string
	Script   string
}

// GenerateVideo runs the full pipeline: concurrent DB bootstrap, video job
// submission and the narration chain; then polling, best-effort re-hosting,
// best-effort muxing, and persistence. Narration-chain failure degrades the
// turn to a silent video; a failed or timed-out video job fails the turn.
func (s *Service) GenerateVideo(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	var (
		sessionID    string
		taskID       string
		voice        *narration
		narrationErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.bootstrapConversation(gctx, req)
		if err != nil {
			return err
		}
		sessionID = id
		return nil
	})
	g.Go(func() error {
		id, err := s.video.Submit(gctx, videoPrompt(req.Prompt), req.ContextImageURL)
		if err != nil {
			return err
		}
		taskID = id
		return nil
	})
	g.Go(func() error {
		n, err := s.generateNarration(gctx, req)
		if err != nil {
			// Silent video is a valid degraded output; the narration chain
			// must not take down the whole turn.
			narrationErr = err
			s.logger.Warn().Err(err).Msg("generation: narration chain failed, continuing without audio")
			return nil
		}
		voice = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state, err := PollUntil(ctx, s.poll, func(ctx context.Context) (video.TaskState, bool, error) {
		st, err := s.video.Status(ctx, taskID)
		if err != nil {
			return video.TaskState{}, false, err
		}
		return st, st.Status.Terminal(), nil
	})
	if err != nil {
		return nil, err
	}
	if state.Status == video.StatusFailed {
		if msg := strings.TrimSpace(state.Message); msg != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrVideoJobFailed, msg)
		}
		return nil, domain.ErrVideoJobFailed
	}

	var degraded *multierror.Error
	if narrationErr != nil {
		degraded = multierror.Append(degraded, narrationErr)
	}

	// Re-host the raw video: provider URLs are ephemeral signed URLs, so
	// ownership transfers to our store immediately. Failure keeps the
	// original URL rather than aborting.
	videoURL := state.VideoURL
	rawVideoURL := state.VideoURL
	if hosted, err := s.rehost(ctx, state.VideoURL, req.UserID); err != nil {
		degraded = multierror.Append(degraded, err)
		s.logger.Warn().Err(err).Msg("generation: raw video re-host failed, keeping ephemeral url")
	} else {
		videoURL = hosted
		rawVideoURL = hosted
	}

	audioURL, script := "", ""
	if voice != nil {
		audioURL, script = voice.AudioURL, voice.Script
	}

	if audioURL != "" {
		if muxedURL, err := s.muxAndUpload(ctx, videoURL, audioURL, req.UserID); err != nil {
			degraded = multierror.Append(degraded, err)
			s.logger.Warn().Err(err).Msg("generation: mux failed, falling back to silent video")
		} else {
			videoURL = muxedURL
		}
	}

	if err := degraded.ErrorOrNil(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("generation: degraded video result")
	}

	reply := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    req.UserID,
		Role:      domain.RoleAssistant,
		Content:   script,
		VideoURL:  videoURL,
		AudioURL:  audioURL,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Insert(ctx, reply); err != nil {
		return nil, &domain.PersistenceError{Op: "insert assistant message", Err: err}
	}

	return &Result{
		SessionID:   sessionID,
		MessageID:   reply.ID,
		VideoURL:    videoURL,
		RawVideoURL: rawVideoURL,
		AudioURL:    audioURL,
		Script:      script,
	}, nil
}

// GenerateImage runs the two-way variant: concurrent DB bootstrap and image
// synthesis, then best-effort re-hosting and persistence.
func (s *Service) GenerateImage(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	var (
		sessionID string
		asset     *imageprovider.Asset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.bootstrapConversation(gctx, req)
		if err != nil {
			return err
		}
		sessionID = id
		return nil
	})
	g.Go(func() error {
		a, err := s.image.Generate(gctx, imageprovider.GenerateRequest{
			Prompt:   req.Prompt,
			ImageURL: req.ContextImageURL,
		})
		if err != nil {
			return err
		}
		asset = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imageURL := asset.URL
	key := fmt.Sprintf("images/%s/%d%s", req.UserID, time.Now().UnixMilli(), extensionFor(asset.Format))
	if storedKey, err := s.store.Upload(ctx, key, asset.Data, asset.Format); err != nil {
		s.logger.Warn().Err(err).Msg("generation: image re-host failed, keeping ephemeral url")
	} else {
		imageURL = s.store.PublicURL(storedKey)
	}

	reply := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    req.UserID,
		Role:      domain.RoleAssistant,
		ImageURL:  imageURL,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Insert(ctx, reply); err != nil {
		return nil, &domain.PersistenceError{Op: "insert assistant message", Err: err}
	}

	return &Result{SessionID: sessionID, MessageID: reply.ID, ImageURL: imageURL}, nil
}

// Chat runs the conversational variant: concurrent DB bootstrap and a vision
// completion over the replayed conversation, then persistence.
func (s *Service) Chat(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Replay history before this turn's rows exist.
	var history []domain.Message
	if req.SessionID != "" {
		h, err := s.messages.ListBySession(ctx, req.SessionID, req.UserID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list session messages", Err: err}
		}
		history = h
	}

	var (
		sessionID string
		reply     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.bootstrapConversation(gctx, req)
		if err != nil {
			return err
		}
		sessionID = id
		return nil
	})
	g.Go(func() error {
		msgs := historyTurns(history, req.DeleteMessageID)
		msgs = append(msgs, chat.Message{Role: "user", Text: req.Prompt, ImageURL: req.ContextImageURL})
		text, err := s.chat.Complete(gctx, chat.CompletionRequest{
			SystemPrompt: copySystemPrompt(req.Locale),
			Messages:     msgs,
		})
		if err != nil {
			return err
		}
		reply = text
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    req.UserID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, &domain.PersistenceError{Op: "insert assistant message", Err: err}
	}

	return &Result{SessionID: sessionID, MessageID: msg.ID, Content: reply}, nil
}

// validate rejects a request before any external call or persistence write.
func (s *Service) validate(req Request) error {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.ContextImageURL) == "" {
		return &domain.ValidationError{Reason: "context image url is required"}
	}
	if req.ModelID != "" {
		if _, ok := s.models[req.ModelID]; !ok {
			return &domain.ValidationError{Reason: "unknown model: " + req.ModelID}
		}
	}
	return nil
}

// bootstrapConversation ensures the session exists and settles this turn's
// user-side rows: regenerations delete the prior assistant message, fresh
// turns insert the user message. The delete runs before any later insert; no
// transaction spans the pair.
func (s *Service) bootstrapConversation(ctx context.Context, req Request) (string, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sess := &domain.Session{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			Name:      sessionName(req.Prompt),
			CreatedAt: time.Now(),
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			return "", &domain.PersistenceError{Op: "create session", Err: err}
		}
		sessionID = sess.ID
	}

	if req.Regenerate {
		if req.DeleteMessageID != "" {
			if err := s.messages.Delete(ctx, req.DeleteMessageID); err != nil {
				return "", &domain.PersistenceError{Op: "delete previous assistant message", Err: err}
			}
		}
		return sessionID, nil
	}

	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    req.UserID,
		Role:      domain.RoleUser,
		Content:   req.Prompt,
		ImageURL:  req.ContextImageURL,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		return "", &domain.PersistenceError{Op: "insert user message", Err: err}
	}
	return sessionID, nil
}

// generateNarration runs the sequential audio chain: script from the product
// photo, speech synthesis, upload.
func (s *Service) generateNarration(ctx context.Context, req Request) (*narration, error) {
	script, err := s.chat.Complete(ctx, chat.CompletionRequest{
		SystemPrompt: scriptSystemPrompt(req.Locale),
		Messages: []chat.Message{{
			Role:     "user",
			Text:     scriptUserPrompt(req.Prompt),
			ImageURL: req.ContextImageURL,
		}},
		// The script endpoint requires inline image data.
		InlineImages: true,
	})
	if err != nil {
		return nil, err
	}

	audio, err := s.speech.Synthesize(ctx, script, speech.VoiceConfig{VoiceType: s.voiceType})
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("audios/%s/%d.mp3", req.UserID, time.Now().UnixMilli())
	storedKey, err := s.store.Upload(ctx, key, audio, "audio/mpeg")
	if err != nil {
		return nil, &domain.ExternalServiceError{Stage: domain.StageUpload, Err: err}
	}
	return &narration{AudioURL: s.store.PublicURL(storedKey), Script: script}, nil
}

// rehost downloads the provider's ephemeral video and uploads it to the
// durable store, returning the public URL.
func (s *Service) rehost(ctx context.Context, srcURL, userID string) (string, error) {
	data, err := s.fetch(ctx, srcURL)
	if err != nil {
		return "", &domain.ExternalServiceError{Stage: domain.StageUpload, Err: err}
	}
	key := fmt.Sprintf("videos/%s/%d_raw.mp4", userID, time.Now().UnixMilli())
	storedKey, err := s.store.Upload(ctx, key, data, "video/mp4")
	if err != nil {
		return "", &domain.ExternalServiceError{Stage: domain.StageUpload, Err: err}
	}
	return s.store.PublicURL(storedKey), nil
}

// muxAndUpload combines the video and narration, uploads the result, and
// returns its public URL.
func (s *Service) muxAndUpload(ctx context.Context, videoURL, audioURL, userID string) (string, error) {
	muxed, err := s.transcoder.Mux(ctx, videoURL, audioURL)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("videos/%s/%d_final.mp4", userID, time.Now().UnixMilli())
	storedKey, err := s.store.Upload(ctx, key, muxed, "video/mp4")
	if err != nil {
		return "", &domain.ExternalServiceError{Stage: domain.StageUpload, Err: err}
	}
	return s.store.PublicURL(storedKey), nil
}

func (s *Service) fetch(ctx context.Context, srcURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", srcURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", srcURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// historyTurns maps persisted messages onto completion turns, skipping the
// assistant row a regeneration is about to replace.
func historyTurns(history []domain.Message, skipID string) []chat.Message {
	turns := make([]chat.Message, 0, len(history))
	for _, m := range history {
		if skipID != "" && m.ID == skipID {
			continue
		}
		turns = append(turns, chat.Message{Role: string(m.Role), Text: m.Content, ImageURL: m.ImageURL})
	}
	return turns
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".png"
	}
}
