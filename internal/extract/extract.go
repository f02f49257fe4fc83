package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/fallback"
	"dubflow/internal/logging"
	"dubflow/internal/services"
)

// Extractor downloads the audio track of a supported video URL into a
// session's workspace directory.
type Extractor struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
}

// NewExtractor constructs an extractor.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		cfg:        cfg,
		logger:     logger.With(logging.String(logging.FieldComponent, "extract")),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Extract classifies the URL and runs the matching download chain. The
// returned path is the extracted audio file inside the session directory.
func (e *Extractor) Extract(ctx context.Context, rawURL, sessionID string) (string, error) {
	kind, err := Classify(rawURL)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "extract", "classify", "unsupported URL", err)
	}

	outDir := e.cfg.SessionDir(sessionID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	outPath := filepath.Join(outDir, sessionID+".mp3")

	var methods []fallback.Method[string]
	switch kind {
	case KindYouTube:
		methods = e.youtubeChain(rawURL, outPath)
	case KindInstagram:
		methods = e.instagramChain(rawURL, outPath)
	}

	result, err := fallback.Run(ctx, methods, fallback.Options{
		Op:             "extract " + string(kind) + " audio",
		AttemptTimeout: time.Duration(e.cfg.Extraction.AttemptTimeoutSeconds) * time.Second,
		Logger:         e.logger,
	})
	if err != nil {
		return "", err
	}
	e.logger.Info("audio extracted",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldMethod, result.Winner),
		logging.Int("attempts", len(result.Attempts)))
	return result.Value, nil
}

// youtubeChain orders the YouTube download strategies from most direct to
// last resort. The placeholder method is only present when configured.
func (e *Extractor) youtubeChain(rawURL, outPath string) []fallback.Method[string] {
	videoID, hasID := YouTubeVideoID(rawURL)
	watchURL := rawURL
	if hasID {
		watchURL = "https://www.youtube.com/watch?v=" + videoID
	}

	methods := []fallback.Method[string]{
		{
			ID: "api-assisted",
			Available: func() (bool, string) {
				if e.cfg.Extraction.YouTubeAPIKey == "" {
					return false, "no YouTube API key configured"
				}
				if !hasID {
					return false, "could not extract video ID"
				}
				return e.binaryAvailable(e.cfg.FFmpegBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				if err := e.verifyYouTubeVideo(ctx, videoID); err != nil {
					return "", err
				}
				return e.ffmpegTranscode(ctx, watchURL, outPath)
			},
		},
		{
			ID: "ffmpeg-direct",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.FFmpegBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.ffmpegTranscode(ctx, watchURL, outPath)
			},
		},
		{
			ID: "downloader",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.DownloaderBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.downloaderRun(ctx, watchURL, outPath,
					"-f", "bestaudio/best",
					"--socket-timeout", "30",
					"--retries", "10")
			},
		},
		{
			ID: "downloader-alt",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.DownloaderBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.downloaderRun(ctx, watchURL, outPath,
					"-f", "worstaudio/worst",
					"--no-check-certificates",
					"--geo-bypass",
					"--socket-timeout", "30",
					"--retries", "10",
					"--fragment-retries", "10",
					"--user-agent", browserUserAgent)
			},
		},
	}
	if e.cfg.Extraction.AllowPlaceholder {
		methods = append(methods, fallback.Method[string]{
			ID: "placeholder",
			Available: func() (bool, string) {
				if !hasID {
					return false, "could not extract video ID"
				}
				return e.binaryAvailable(e.cfg.FFmpegBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				// Thumbnail existence is the cheapest signal that the
				// video itself is real before synthesizing silence.
				if err := e.verifyThumbnail(ctx, videoID); err != nil {
					return "", err
				}
				return e.silentPlaceholder(ctx, outPath)
			},
		})
	}
	return methods
}

// instagramChain orders the Instagram strategies. Instagram has no metadata
// API, so the downloader leads and ffmpeg follows.
func (e *Extractor) instagramChain(rawURL, outPath string) []fallback.Method[string] {
	methods := []fallback.Method[string]{
		{
			ID: "downloader",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.DownloaderBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.downloaderRun(ctx, rawURL, outPath,
					"-f", "bestaudio/best",
					"--socket-timeout", "30",
					"--retries", "10")
			},
		},
		{
			ID: "downloader-alt",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.DownloaderBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.downloaderRun(ctx, rawURL, outPath,
					"-f", "worst",
					"--no-check-certificates",
					"--geo-bypass",
					"--user-agent", browserUserAgent)
			},
		},
		{
			ID: "ffmpeg-direct",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.FFmpegBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.ffmpegTranscode(ctx, rawURL, outPath)
			},
		},
	}
	if e.cfg.Extraction.AllowPlaceholder {
		methods = append(methods, fallback.Method[string]{
			ID: "placeholder",
			Available: func() (bool, string) {
				return e.binaryAvailable(e.cfg.FFmpegBinary())
			},
			Invoke: func(ctx context.Context) (string, error) {
				return e.silentPlaceholder(ctx, outPath)
			},
		})
	}
	return methods
}

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Safari/605.1.15"

func (e *Extractor) binaryAvailable(name string) (bool, string) {
	if _, err := exec.LookPath(name); err != nil {
		return false, name + " not found in PATH"
	}
	return true, ""
}

// verifyYouTubeVideo asks the Data API whether the video exists before any
// download is attempted, so a dead link fails fast.
func (e *Extractor) verifyYouTubeVideo(ctx context.Context, videoID string) error {
	endpoint := "https://www.googleapis.com/youtube/v3/videos?part=id&id=" +
		url.QueryEscape(videoID) + "&key=" + url.QueryEscape(e.cfg.Extraction.YouTubeAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query video metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video metadata lookup returned http %d", resp.StatusCode)
	}
	return nil
}

func (e *Extractor) verifyThumbnail(ctx context.Context, videoID string) error {
	endpoint := "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("thumbnail check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video thumbnail missing, video may be private or removed")
	}
	return nil
}

// ffmpegTranscode streams the URL through ffmpeg into an mp3 file.
func (e *Extractor) ffmpegTranscode(ctx context.Context, srcURL, outPath string) (string, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegBinary(),
		"-y", "-i", srcURL, "-vn", "-acodec", "libmp3lame", "-q:a", "2", outPath)
	return e.runProducing(cmd, outPath)
}

// downloaderRun invokes the downloader with audio extraction to mp3 and the
// provided extra flags.
func (e *Extractor) downloaderRun(ctx context.Context, srcURL, outPath string, extra ...string) (string, error) {
	args := []string{
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"-o", outPath,
	}
	args = append(args, extra...)
	args = append(args, srcURL)
	cmd := exec.CommandContext(ctx, e.cfg.DownloaderBinary(), args...)
	return e.runProducing(cmd, outPath)
}

// silentPlaceholder writes three seconds of silence so the pipeline can be
// exercised even when every real download path is blocked.
func (e *Extractor) silentPlaceholder(ctx context.Context, outPath string) (string, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegBinary(),
		"-y", "-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo", "-t", "3", outPath)
	return e.runProducing(cmd, outPath)
}

// runProducing runs the command and verifies it left a non-empty output
// file. A failed attempt removes any partial file so the next method in the
// chain starts clean.
func (e *Extractor) runProducing(cmd *exec.Cmd, outPath string) (string, error) {
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(outPath)
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return "", fmt.Errorf("%s failed: %w: %s", filepath.Base(cmd.Path), err, detail)
	}
	info, statErr := os.Stat(outPath)
	if statErr != nil || info.Size() == 0 {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("%s produced no output file", filepath.Base(cmd.Path))
	}
	return outPath, nil
}
