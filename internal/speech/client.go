package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Synthesizer renders one line of speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speaker metadata.Speaker) ([]byte, error)
}

type Config struct {
	APIURL       string
	Token        string
	Model        string
	VoiceA       string
	VoiceB       string
	Timeout      time.Duration
	MaxRetries   int
	RetryInitial time.Duration
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("TTS API URL is required")
	}
	if c.Token == "" {
		return fmt.Errorf("TTS API token is required")
	}
	if c.VoiceA == "" || c.VoiceB == "" {
		return fmt.Errorf("a voice is required for both speakers")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// Client calls a Fish Audio compatible /v1/tts endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type ttsRequest struct {
	Text              string  `json:"text"`
	ReferenceID       string  `json:"reference_id"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	ChunkLength       int     `json:"chunk_length"`
	Normalize         bool    `json:"normalize"`
	Format            string  `json:"format"`
	MP3Bitrate        int     `json:"mp3_bitrate"`
	Latency           string  `json:"latency"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

func (c *Client) voice(speaker metadata.Speaker) string {
	if speaker == metadata.SpeakerB {
		return c.config.VoiceB
	}
	return c.config.VoiceA
}

// Synthesize returns mp3 bytes for text in the speaker's voice. 429, 5xx and transport
// errors are retried with exponential backoff; the final failure is a RemoteService error.
func (c *Client) Synthesize(ctx context.Context, text string, speaker metadata.Speaker) ([]byte, error) {
	if !speaker.Valid() {
		return nil, apperr.New(apperr.ErrInputValidation, "unknown speaker %q", speaker)
	}

	payload, err := json.Marshal(ttsRequest{
		Text:              text,
		ReferenceID:       c.voice(speaker),
		Temperature:       0.7,
		TopP:              0.7,
		ChunkLength:       300,
		Normalize:         true,
		Format:            "mp3",
		MP3Bitrate:        128,
		Latency:           "normal",
		RepetitionPenalty: 1.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var audio []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := c.post(ctx, payload)
		if err != nil {
			log.Warn("TTS attempt %d for speaker %s failed: %v", attempt, speaker, err)
			return err
		}
		audio = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	if c.config.RetryInitial > 0 {
		b.InitialInterval = c.config.RetryInitial
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		metrics.RemoteCalls.WithLabelValues("tts", "error").Inc()
		return nil, apperr.Wrap(err, apperr.ErrRemoteService, "speech synthesis failed after %d attempt(s)", attempt)
	}
	metrics.RemoteCalls.WithLabelValues("tts", "ok").Inc()
	return audio, nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")
	if c.config.Model != "" {
		req.Header.Set("model", c.config.Model)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, truncate(string(body), 256))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("TTS response was empty")
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
