package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"dubflow/internal/extract"
	"dubflow/internal/services"
	"dubflow/internal/testsupport"
)

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binaries are shell scripts")
	}
}

func TestExtractYouTubeFallsBackToDownloader(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Extraction.AllowPlaceholder = false
	// Direct transcode fails; the chain must move on to the downloader.
	testsupport.StubFailure(t, cfg, "ffmpeg")

	extractor := extract.NewExtractor(cfg, nil)
	path, err := extractor.Extract(context.Background(), watchURL, "sess-extract")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("extraction produced an empty file")
	}
}

func TestExtractExhaustsWhenEveryMethodFails(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Extraction.AllowPlaceholder = false
	testsupport.StubFailure(t, cfg, "ffmpeg")
	testsupport.StubFailure(t, cfg, "yt-dlp")

	extractor := extract.NewExtractor(cfg, nil)
	_, err := extractor.Extract(context.Background(), watchURL, "sess-extract")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider exhaustion, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.SessionDir("sess-extract"), "sess-extract.mp3")); !os.IsNotExist(statErr) {
		t.Fatal("failed extraction must not leave a partial file")
	}
}

func TestExtractRejectsUnsupportedURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	extractor := extract.NewExtractor(cfg, nil)

	_, err := extractor.Extract(context.Background(), "https://example.com/video.mp4", "sess-extract")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
