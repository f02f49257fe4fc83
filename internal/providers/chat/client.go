// Package chat implements a Translator over OpenAI-compatible chat
// completion endpoints. One client serves every chat-backed brand (google,
// openai, claude, llama); only the endpoint, model, and key differ.
package chat

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

	"dubflow/internal/services"
	"dubflow/internal/session"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings for one chat backend.
type Config struct {
	Brand          string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps a chat completion API as a segment translator.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a chat translation client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Brand:          strings.ToLower(strings.TrimSpace(cfg.Brand)),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Brand returns the backend brand this client serves.
func (c *Client) Brand() string {
	return c.cfg.Brand
}

const translateSystemPrompt = `You are a translation engine for dubbed speech. Translate each numbered segment from the source language to the target language, preserving tone and approximate length so the translation fits the original timing. Respond with JSON only: {"segments":[{"segment_id":<id>,"translated_text":"..."}]}. Return every segment exactly once.`

// Translate renders segment texts into the target language. Segment IDs,
// timing, and speakers pass through unchanged.
func (c *Client) Translate(ctx context.Context, segs []session.Segment, sourceLang, targetLang string) ([]session.Segment, error) {
	if len(segs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "translate", c.cfg.Brand, "no segments to translate", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translate", c.cfg.Brand, "api key required", nil)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Source language: %s\nTarget language: %s\nSegments:\n", sourceLang, targetLang)
	for _, seg := range segs {
		fmt.Fprintf(&prompt, "%d: %s\n", seg.ID, seg.Text)
	}

	content, err := c.completionWithRetry(ctx, translateSystemPrompt, prompt.String())
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", c.cfg.Brand, "chat completion failed", err)
	}

	var parsed struct {
		Segments []struct {
			SegmentID      int    `json:"segment_id"`
			TranslatedText string `json:"translated_text"`
		} `json:"segments"`
	}
	if err := decodeModelJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", c.cfg.Brand, "parse model payload", err)
	}

	translatedByID := make(map[int]string, len(parsed.Segments))
	for _, item := range parsed.Segments {
		translatedByID[item.SegmentID] = strings.TrimSpace(item.TranslatedText)
	}

	out := make([]session.Segment, len(segs))
	copy(out, segs)
	for i := range out {
		text, ok := translatedByID[out[i].ID]
		if !ok || text == "" {
			return nil, services.Wrap(services.ErrProvider, "translate", c.cfg.Brand,
				fmt.Sprintf("model omitted segment %d", out[i].ID), nil)
		}
		out[i].TranslatedText = text
	}
	return out, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completionWithRetry(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !c.shouldRetry(ctx, err, attempt, attempts) {
			return "", err
		}
		if err := c.sleep(ctx, c.backoffDelay(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("chat request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("chat request: empty completion content")
}

func (c *Client) shouldRetry(ctx context.Context, err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		// Client errors other than rate limiting will not clear on retry.
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decodeModelJSON tolerates models that wrap JSON in a code fence.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return json.Unmarshal([]byte(strings.TrimSpace(trimmed)), target)
}
