package sarvam_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dubflow/internal/providers"
	"dubflow/internal/providers/sarvam"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/testsupport"
)

func TestTranscribeBuildsSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("API-Subscription-Key"); got != "test-key" {
			t.Errorf("unexpected subscription header %q", got)
		}
		body := map[string]any{
			"transcript":    "hello world",
			"language_code": "en-IN",
			"diarized_transcript": map[string]any{
				"entries": []map[string]any{
					{"transcript": "hello", "start_time_seconds": 0.0, "end_time_seconds": 1.2, "speaker_id": "0"},
					{"transcript": "world", "start_time_seconds": 1.5, "end_time_seconds": 2.4, "speaker_id": "SPEAKER_01"},
				},
			},
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "audio.mp3")
	testsupport.WriteFile(t, audio, 64)

	client := sarvam.NewClient(sarvam.Config{APIKey: "test-key", BaseURL: server.URL, Diarize: true})
	segs, lang, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if lang != "en-IN" {
		t.Fatalf("unexpected language %q", lang)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].ID != 1 || segs[1].ID != 2 {
		t.Fatalf("segment IDs must be sequential from 1: %+v", segs)
	}
	if segs[0].Speaker != "SPEAKER_00" {
		t.Fatalf("speaker id not normalized: %q", segs[0].Speaker)
	}
	if segs[1].Speaker != "SPEAKER_01" {
		t.Fatalf("canonical speaker id must pass through: %q", segs[1].Speaker)
	}
}

func TestTranscribeFallsBackToPlainTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"transcript":    "all in one",
			"language_code": "hi-IN",
		})
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "audio.mp3")
	testsupport.WriteFile(t, audio, 64)

	client := sarvam.NewClient(sarvam.Config{APIKey: "test-key", BaseURL: server.URL})
	segs, _, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "all in one" {
		t.Fatalf("expected single fallback segment, got %+v", segs)
	}
}

func TestTranslateFillsEachSegment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Input string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"translated_text": "T:" + req.Input})
	}))
	defer server.Close()

	client := sarvam.NewClient(sarvam.Config{APIKey: "test-key", BaseURL: server.URL})
	segs := []session.Segment{
		{ID: 1, Text: "one"},
		{ID: 2, Text: "two"},
	}
	out, err := client.Translate(context.Background(), segs, "en-IN", "hi-IN")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out[0].TranslatedText != "T:one" || out[1].TranslatedText != "T:two" {
		t.Fatalf("unexpected translations: %+v", out)
	}
	if segs[0].TranslatedText != "" {
		t.Fatal("input slice must not be mutated")
	}
}

func TestSynthesizeWritesAudioFile(t *testing.T) {
	audioData := []byte("RIFF-fake-audio")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string][]string{
			"audios": {base64.StdEncoding.EncodeToString(audioData)},
		})
	}))
	defer server.Close()

	outDir := t.TempDir()
	client := sarvam.NewClient(sarvam.Config{APIKey: "test-key", BaseURL: server.URL, OutputDir: outDir})
	segs := []session.Segment{{ID: 1, Text: "hello", TranslatedText: "namaste"}}

	path, err := client.Synthesize(context.Background(), segs, providers.VoiceConfig{Voice: "meera", Language: "hi-IN"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(written) != string(audioData) {
		t.Fatal("decoded audio does not match")
	}
}

func TestSynthesizeWithoutTranslationFails(t *testing.T) {
	client := sarvam.NewClient(sarvam.Config{APIKey: "test-key", OutputDir: t.TempDir()})
	segs := []session.Segment{{ID: 1, Text: "hello"}}

	_, err := client.Synthesize(context.Background(), segs, providers.VoiceConfig{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMissingKeyIsConfigurationError(t *testing.T) {
	client := sarvam.NewClient(sarvam.Config{})
	_, _, err := client.Transcribe(context.Background(), "nope.mp3")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
