package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sngdarren/mr-team/pkg/icron"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Config holds all application configuration, read from environment variables.
//
// Environment Variables:
// HTTP:
// - HTTP_ADDR: listen address (default: :8080)
// - HTTP_MAX_UPLOAD_MB: largest accepted upload in MiB (default: 32)
//
// Logging:
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_FORMAT: console or json (default: console)
//
// LLM (dialogue generation):
// - LLM_API_KEY: API key (required)
// - LLM_API_URL: OpenAI-compatible base URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: model name (default: anthropic/claude-3.5-sonnet)
// - LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT, LLM_MAX_RETRIES
//
// Speech:
// - TTS_API_TOKEN: API token (required)
// - TTS_API_URL: endpoint (default: https://api.fish.audio/v1/tts)
// - TTS_MODEL, TTS_VOICE_A, TTS_VOICE_B, TTS_CONCURRENCY, TTS_MAX_RETRIES, TTS_TIMEOUT
//
// Cast:
// - SPEAKER_A_NAME (default: rick), SPEAKER_B_NAME (default: morty)
//
// Composition:
// - BACKGROUND_VIDEO, AVATAR_A_IMAGE, AVATAR_B_IMAGE: asset paths
// - BUFFER_SECONDS (10), AVATAR_SCALE (0.3), AVATAR_ANCHOR (bottom-center), AUDIO_SAMPLE_RATE (44100)
// - SEGMENT_WORKERS (1), MAX_SEGMENTS (3), DIALOGUE_CONCURRENCY (3)
// - FFMPEG_PATH (ffmpeg), FFPROBE_PATH (ffprobe)
//
// Paths:
// - UPLOAD_DIR (data/uploads), WORK_DIR (data/work), OUTPUT_DIR (data/outputs)
//
// Jobs:
// - JOB_WORKERS (2), JOB_RETENTION (24h), JANITOR_SCHEDULE (@every 30m)
//
// Storage (optional MinIO mirror, enabled when MINIO_ENDPOINT is set):
// - MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET (videos), MINIO_USE_SSL
//
// Tracing (enabled when OTEL_EXPORTER_OTLP_ENDPOINT is set):
// - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME (mr-team)
type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Log         LogConfig         `json:"log"`
	LLM         LLMConfig         `json:"llm"`
	Speech      SpeechConfig      `json:"speech"`
	Cast        CastConfig        `json:"cast"`
	Composition CompositionConfig `json:"composition"`
	Paths       PathsConfig       `json:"paths"`
	Jobs        JobsConfig        `json:"jobs"`
	Storage     StorageConfig     `json:"storage"`
	Tracing     TracingConfig     `json:"tracing"`
}

type HTTPConfig struct {
	Addr        string `json:"addr" env:"HTTP_ADDR" envDefault:":8080"`
	MaxUploadMB int64  `json:"max_upload_mb" env:"HTTP_MAX_UPLOAD_MB" envDefault:"32"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"console"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey      string        `json:"-" env:"LLM_API_KEY"`
	APIURL      string        `json:"api_url" env:"LLM_API_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model       string        `json:"model" env:"LLM_MODEL" envDefault:"anthropic/claude-3.5-sonnet"`
	MaxTokens   int           `json:"max_tokens" env:"LLM_MAX_TOKENS" envDefault:"4000"`
	Temperature float64       `json:"temperature" env:"LLM_TEMPERATURE" envDefault:"0.7"`
	Timeout     time.Duration `json:"timeout" env:"LLM_TIMEOUT" envDefault:"60s"`
	MaxRetries  int           `json:"max_retries" env:"LLM_MAX_RETRIES" envDefault:"3"`
	SiteURL     string        `json:"site_url" env:"LLM_SITE_URL"`
	AppName     string        `json:"app_name" env:"LLM_APP_NAME" envDefault:"mr-team"`
}

type SpeechConfig struct {
	APIURL      string        `json:"api_url" env:"TTS_API_URL" envDefault:"https://api.fish.audio/v1/tts"`
	Token       string        `json:"-" env:"TTS_API_TOKEN"`
	Model       string        `json:"model" env:"TTS_MODEL" envDefault:"speech-1.6"`
	VoiceA      string        `json:"voice_a" env:"TTS_VOICE_A" envDefault:"d2e75a3e3fd6419893057c02a375a113"`
	VoiceB      string        `json:"voice_b" env:"TTS_VOICE_B" envDefault:"0e1d8e2e4ba648d8b1e4f4d4a4e0b0a1"`
	Concurrency int           `json:"concurrency" env:"TTS_CONCURRENCY" envDefault:"3"`
	MaxRetries  int           `json:"max_retries" env:"TTS_MAX_RETRIES" envDefault:"3"`
	Timeout     time.Duration `json:"timeout" env:"TTS_TIMEOUT" envDefault:"60s"`
}

type CastConfig struct {
	SpeakerA string `json:"speaker_a" env:"SPEAKER_A_NAME" envDefault:"rick"`
	SpeakerB string `json:"speaker_b" env:"SPEAKER_B_NAME" envDefault:"morty"`
}

type CompositionConfig struct {
	BackgroundVideo     string  `json:"background_video" env:"BACKGROUND_VIDEO" envDefault:"assets/background.mp4"`
	AvatarA             string  `json:"avatar_a" env:"AVATAR_A_IMAGE" envDefault:"assets/speaker_a.png"`
	AvatarB             string  `json:"avatar_b" env:"AVATAR_B_IMAGE" envDefault:"assets/speaker_b.png"`
	BufferSeconds       float64 `json:"buffer_seconds" env:"BUFFER_SECONDS" envDefault:"10"`
	AvatarScale         float64 `json:"avatar_scale" env:"AVATAR_SCALE" envDefault:"0.3"`
	AvatarAnchor        string  `json:"avatar_anchor" env:"AVATAR_ANCHOR" envDefault:"bottom-center"`
	SampleRate          int     `json:"sample_rate" env:"AUDIO_SAMPLE_RATE" envDefault:"44100"`
	SegmentWorkers      int     `json:"segment_workers" env:"SEGMENT_WORKERS" envDefault:"1"`
	MaxSegments         int     `json:"max_segments" env:"MAX_SEGMENTS" envDefault:"3"`
	DialogueConcurrency int     `json:"dialogue_concurrency" env:"DIALOGUE_CONCURRENCY" envDefault:"3"`
	FFmpegPath          string  `json:"ffmpeg_path" env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath         string  `json:"ffprobe_path" env:"FFPROBE_PATH" envDefault:"ffprobe"`
}

type PathsConfig struct {
	UploadDir string `json:"upload_dir" env:"UPLOAD_DIR" envDefault:"data/uploads"`
	WorkDir   string `json:"work_dir" env:"WORK_DIR" envDefault:"data/work"`
	OutputDir string `json:"output_dir" env:"OUTPUT_DIR" envDefault:"data/outputs"`
}

type JobsConfig struct {
	Workers         int           `json:"workers" env:"JOB_WORKERS" envDefault:"2"`
	Retention       time.Duration `json:"retention" env:"JOB_RETENTION" envDefault:"24h"`
	JanitorSchedule string        `json:"janitor_schedule" env:"JANITOR_SCHEDULE" envDefault:"@every 30m"`
}

type StorageConfig struct {
	Endpoint  string `json:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `json:"-" env:"MINIO_ACCESS_KEY"`
	SecretKey string `json:"-" env:"MINIO_SECRET_KEY"`
	Bucket    string `json:"bucket" env:"MINIO_BUCKET" envDefault:"videos"`
	UseSSL    bool   `json:"use_ssl" env:"MINIO_USE_SSL" envDefault:"false"`
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

type TracingConfig struct {
	Endpoint    string `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `json:"service_name" env:"OTEL_SERVICE_NAME" envDefault:"mr-team"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %s", config)
	return config, nil
}

// String renders the config as JSON without secrets.
func (c *Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

var knownAnchors = map[string]bool{
	"bottom-center": true,
	"bottom-left":   true,
	"bottom-right":  true,
	"center":        true,
	"top-center":    true,
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Speech.Token == "" {
		return fmt.Errorf("TTS_API_TOKEN is required")
	}
	if c.Composition.AvatarScale <= 0 || c.Composition.AvatarScale > 1 {
		return fmt.Errorf("AVATAR_SCALE must be in (0, 1], got %v", c.Composition.AvatarScale)
	}
	if c.Composition.BufferSeconds < 0 {
		return fmt.Errorf("BUFFER_SECONDS must not be negative")
	}
	if !knownAnchors[c.Composition.AvatarAnchor] {
		return fmt.Errorf("AVATAR_ANCHOR %q is not supported", c.Composition.AvatarAnchor)
	}
	if c.Composition.SegmentWorkers < 1 || c.Composition.DialogueConcurrency < 1 || c.Speech.Concurrency < 1 {
		return fmt.Errorf("worker and concurrency settings must be at least 1")
	}
	if c.Composition.MaxSegments < 1 {
		return fmt.Errorf("MAX_SEGMENTS must be at least 1")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("JOB_WORKERS must be at least 1")
	}
	if c.Jobs.Retention < 0 {
		return fmt.Errorf("JOB_RETENTION must not be negative")
	}
	if _, err := icron.Parse(c.Jobs.JanitorSchedule); err != nil {
		return fmt.Errorf("JANITOR_SCHEDULE: %w", err)
	}
	if c.Cast.SpeakerA == "" || c.Cast.SpeakerB == "" || c.Cast.SpeakerA == c.Cast.SpeakerB {
		return fmt.Errorf("SPEAKER_A_NAME and SPEAKER_B_NAME must be set and distinct")
	}
	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}
