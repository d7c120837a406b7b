package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	StoragePath    string `env:"STORAGE_PATH" envDefault:"./storage"`
	StorageBaseURL string `env:"STORAGE_BASE_URL" envDefault:"http://localhost:8080/static"`
	GeoIPDBPath    string `env:"GEOIP_DB_PATH"`
	DefaultLocale  string `env:"DEFAULT_LOCALE" envDefault:"en"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Chat/vision completion provider (OpenAI-compatible surface).
	ChatAPIKey  string `env:"CHAT_API_KEY"`
	ChatBaseURL string `env:"CHAT_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatModel   string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`

	// Text-to-speech provider.
	TTSAppID       string `env:"TTS_APP_ID"`
	TTSAccessToken string `env:"TTS_ACCESS_TOKEN"`
	TTSCluster     string `env:"TTS_CLUSTER" envDefault:"volcano_tts"`
	TTSVoiceType   string `env:"TTS_VOICE_TYPE" envDefault:"BV700_streaming"`
	TTSBaseURL     string `env:"TTS_BASE_URL" envDefault:"https://openspeech.bytedance.com/api/v1/tts"`

	// DashScope key shared by the image and async video generation endpoints.
	DashScopeAPIKey  string `env:"DASHSCOPE_API_KEY"`
	DashScopeBaseURL string `env:"DASHSCOPE_BASE_URL" envDefault:"https://dashscope-intl.aliyuncs.com/api/v1"`
	ImageModel       string `env:"IMAGE_MODEL" envDefault:"qwen-image-plus"`
	VideoModel       string `env:"VIDEO_MODEL" envDefault:"wan2.2-i2v-plus"`

	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	ScratchDir string `env:"SCRATCH_DIR"`

	VideoPollInterval time.Duration `env:"VIDEO_POLL_INTERVAL" envDefault:"5s"`
	VideoPollBudget   time.Duration `env:"VIDEO_POLL_BUDGET" envDefault:"300s"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"360s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig parses configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
