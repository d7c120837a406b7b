package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// Options configures the Transcoder.
type Options struct {
	FFmpegPath string
	ScratchDir string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Transcoder muxes a video stream and an audio stream into one playable file
// by shelling out to ffmpeg. Scratch files are private per invocation and
// removed on every exit path.
type Transcoder struct {
	ffmpegPath string
	scratchDir string
	httpClient *http.Client
	logger     *infra.Logger
}

// New constructs a Transcoder with sane defaults.
func New(opts Options) *Transcoder {
	ffmpegPath := strings.TrimSpace(opts.FFmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	scratchDir := strings.TrimSpace(opts.ScratchDir)
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
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
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		scratchDir: scratchDir,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Mux downloads both sources, combines them and returns the muxed bytes. The
// video stream is looped until it covers the audio and re-encoded (looping a
// stream copy produces broken timestamps); the output is truncated to the
// shorter post-loop stream, in practice the audio length.
func (t *Transcoder) Mux(ctx context.Context, videoURL, audioURL string) ([]byte, error) {
	run := fmt.Sprintf("mux_%s_%d", uuid.NewString(), time.Now().UnixNano())
	videoPath := filepath.Join(t.scratchDir, run+"_video.mp4")
	audioPath := filepath.Join(t.scratchDir, run+"_audio.mp3")
	outputPath := filepath.Join(t.scratchDir, run+"_out.mp4")
	defer func() {
		for _, p := range []string{videoPath, audioPath, outputPath} {
			_ = os.Remove(p)
		}
	}()

	if err := t.download(ctx, videoURL, videoPath); err != nil {
		return nil, &domain.TranscodeError{Detail: "download video", Err: err}
	}
	if err := t.download(ctx, audioURL, audioPath); err != nil {
		return nil, &domain.TranscodeError{Detail: "download audio", Err: err}
	}

	args := muxArgs(videoPath, audioPath, outputPath)
	t.logger.Debug().Strs("args", args).Msg("media: running ffmpeg")

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &domain.TranscodeError{Detail: "ffmpeg: " + tail(string(out), 512), Err: err}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, &domain.TranscodeError{Detail: "read output", Err: err}
	}
	return data, nil
}

// muxArgs builds the ffmpeg invocation: loop the video to at least cover the
// audio, re-encode both streams, stop at the shorter one, and lay the
// container out for progressive playback.
func muxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-stream_loop", "-1",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}

func (t *Transcoder) download(ctx context.Context, srcURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", srcURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: status %d", srcURL, resp.StatusCode)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	defer dest.Close()
	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
