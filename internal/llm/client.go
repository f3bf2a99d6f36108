package llm

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

	"github.com/cenkalti/backoff/v4"
	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimSuffix(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Chat sends a system and a user prompt and returns the first choice's content.
// Transport failures, 429 and 5xx answers are retried with exponential backoff up to
// MaxRetries times; the final failure is a RemoteService error.
func (c *Client) Chat(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var content string
	attempt := 0
	op := func() error {
		attempt++
		response, err := c.makeRequest(ctx, request)
		if err != nil {
			log.Warn("Chat completion attempt %d failed: %v", attempt, err)
			return err
		}
		if len(response.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("no choices in response"))
		}
		content = response.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		metrics.RemoteCalls.WithLabelValues("llm", "error").Inc()
		return "", apperr.Wrap(err, apperr.ErrRemoteService, "chat completion failed after %d attempt(s)", attempt)
	}
	metrics.RemoteCalls.WithLabelValues("llm", "ok").Inc()
	return content, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.config.RetryInitial > 0 {
		b.InitialInterval = c.config.RetryInitial
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries)), ctx)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.code, e.body)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// makeRequest performs one POST. Errors that retrying cannot fix are wrapped as permanent.
func (c *Client) makeRequest(ctx context.Context, payload ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug("Chat completion answered %d in %s", resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &statusError{code: resp.StatusCode, body: truncate(string(responseBody), 512)}
		if retryable(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return nil, backoff.Permanent(chatResponse.Error)
	}
	return &chatResponse, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
