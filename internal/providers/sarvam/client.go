// Package sarvam implements the Sarvam AI speech APIs: diarized
// speech-to-text, text translation, and text-to-speech.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dubflow/internal/providers"
	"dubflow/internal/services"
	"dubflow/internal/session"
)

const (
	defaultBaseURL     = "https://api.sarvam.ai"
	defaultHTTPTimeout = 60 * time.Second
	subscriptionHeader = "API-Subscription-Key"
)

// Config captures connection settings for the Sarvam API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	Diarize        bool
	// OutputDir receives synthesized audio files.
	OutputDir string
}

// Client talks to the Sarvam REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a Sarvam API client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Brand returns the provider brand.
func (c *Client) Brand() string {
	return "sarvam"
}

type diarizedEntry struct {
	Transcript       string  `json:"transcript"`
	StartTimeSeconds float64 `json:"start_time_seconds"`
	EndTimeSeconds   float64 `json:"end_time_seconds"`
	SpeakerID        string  `json:"speaker_id"`
}

type transcribeResponse struct {
	Transcript         string `json:"transcript"`
	LanguageCode       string `json:"language_code"`
	DiarizedTranscript struct {
		Entries []diarizedEntry `json:"entries"`
	} `json:"diarized_transcript"`
}

// Transcribe uploads an audio file for diarized transcription and returns
// time-ordered segments plus the detected language.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]session.Segment, string, error) {
	if c.cfg.APIKey == "" {
		return nil, "", services.Wrap(services.ErrConfiguration, "transcribe", "sarvam", "api key required", nil)
	}
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "transcribe", "sarvam", "open audio file", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio into request: %w", err)
	}
	if c.cfg.Model != "" {
		_ = writer.WriteField("model", c.cfg.Model)
	}
	if c.cfg.Diarize {
		_ = writer.WriteField("with_diarization", "true")
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/speech-to-text", &body)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(subscriptionHeader, c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var decoded transcribeResponse
	if err := c.do(req, &decoded); err != nil {
		return nil, "", services.Wrap(services.ErrProvider, "transcribe", "sarvam", "speech-to-text request failed", err)
	}

	entries := decoded.DiarizedTranscript.Entries
	segments := make([]session.Segment, 0, len(entries))
	for i, entry := range entries {
		segments = append(segments, session.Segment{
			ID:      i + 1,
			Start:   entry.StartTimeSeconds,
			End:     entry.EndTimeSeconds,
			Speaker: normalizeSpeakerID(entry.SpeakerID),
			Text:    strings.TrimSpace(entry.Transcript),
		})
	}
	if len(segments) == 0 && strings.TrimSpace(decoded.Transcript) != "" {
		// Diarization disabled or unavailable; fall back to one segment.
		segments = append(segments, session.Segment{
			ID:      1,
			Speaker: "SPEAKER_00",
			Text:    strings.TrimSpace(decoded.Transcript),
		})
	}
	if len(segments) == 0 {
		return nil, "", services.Wrap(services.ErrProvider, "transcribe", "sarvam", "empty transcription response", nil)
	}
	return segments, decoded.LanguageCode, nil
}

func normalizeSpeakerID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "SPEAKER_00"
	}
	if strings.HasPrefix(id, "SPEAKER_") {
		return id
	}
	if n, err := strconv.Atoi(id); err == nil {
		return fmt.Sprintf("SPEAKER_%02d", n)
	}
	return "SPEAKER_" + id
}

type translateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	Model              string `json:"model,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate renders each segment's text into the target language through the
// translate endpoint, one request per segment.
func (c *Client) Translate(ctx context.Context, segs []session.Segment, sourceLang, targetLang string) ([]session.Segment, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "sarvam", "api key required", nil)
	}
	if len(segs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "translate", "sarvam", "no segments to translate", nil)
	}

	out := make([]session.Segment, len(segs))
	copy(out, segs)
	for i := range out {
		payload := translateRequest{
			Input:              out[i].Text,
			SourceLanguageCode: sourceLang,
			TargetLanguageCode: targetLang,
			Model:              c.cfg.Model,
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode translate request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set(subscriptionHeader, c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		var decoded translateResponse
		if err := c.do(req, &decoded); err != nil {
			return nil, services.Wrap(services.ErrProvider, "translate", "sarvam",
				fmt.Sprintf("translate segment %d failed", out[i].ID), err)
		}
		translated := strings.TrimSpace(decoded.TranslatedText)
		if translated == "" {
			return nil, services.Wrap(services.ErrProvider, "translate", "sarvam",
				fmt.Sprintf("empty translation for segment %d", out[i].ID), nil)
		}
		out[i].TranslatedText = translated
	}
	return out, nil
}

// Sarvam rejects TTS inputs longer than this many characters.
const maxSynthesisChunk = 500

type synthesizeRequest struct {
	Inputs             []string `json:"inputs"`
	TargetLanguageCode string   `json:"target_language_code"`
	Speaker            string   `json:"speaker,omitempty"`
	SpeechSampleRate   int      `json:"speech_sample_rate"`
	Model              string   `json:"model,omitempty"`
}

type synthesizeResponse struct {
	Audios []string `json:"audios"`
}

// Synthesize renders translated segments to speech and writes the combined
// audio to a file in the configured output directory, returning its path.
// A failed request removes any partially written file before reporting the
// error.
func (c *Client) Synthesize(ctx context.Context, segs []session.Segment, voice providers.VoiceConfig) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "synthesize", "sarvam", "api key required", nil)
	}
	text := session.TranslatedTranscript(segs)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "synthesize", "sarvam", "no translated text to synthesize", nil)
	}

	var audio []byte
	for _, chunk := range splitChunks(text, maxSynthesisChunk) {
		payload := synthesizeRequest{
			Inputs:             []string{chunk},
			TargetLanguageCode: voice.Language,
			Speaker:            voice.Voice,
			SpeechSampleRate:   22050,
			Model:              c.cfg.Model,
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode synthesize request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/text-to-speech", bytes.NewReader(encoded))
		if err != nil {
			return "", fmt.Errorf("new request: %w", err)
		}
		req.Header.Set(subscriptionHeader, c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		var decoded synthesizeResponse
		if err := c.do(req, &decoded); err != nil {
			return "", services.Wrap(services.ErrProvider, "synthesize", "sarvam", "text-to-speech request failed", err)
		}
		if len(decoded.Audios) == 0 {
			return "", services.Wrap(services.ErrProvider, "synthesize", "sarvam", "empty synthesis response", nil)
		}
		data, err := base64.StdEncoding.DecodeString(decoded.Audios[0])
		if err != nil {
			return "", services.Wrap(services.ErrProvider, "synthesize", "sarvam", "decode synthesis audio", err)
		}
		audio = append(audio, data...)
	}

	outPath := filepath.Join(c.cfg.OutputDir, fmt.Sprintf("synthesis_%d.wav", time.Now().UnixNano()))
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output directory: %w", err)
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("write synthesis output: %w", err)
	}
	return outPath, nil
}

func splitChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, sentence := range strings.SplitAfter(text, ". ") {
		if current.Len() > 0 && current.Len()+len(sentence) > limit {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
