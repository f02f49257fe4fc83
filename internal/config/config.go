package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
}

// Provider contains connection settings for one external backend.
type Provider struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains configuration for the speech-to-text backend.
type Transcription struct {
	Provider `toml:",inline"`
	Diarize  bool `toml:"diarize"`
}

// Translation contains configuration for translation backends and their
// fallback order.
type Translation struct {
	// Order lists backend brands in fallback priority order.
	Order             []string            `toml:"order"`
	RequestsPerMinute int                 `toml:"requests_per_minute"`
	Backends          map[string]Provider `toml:"backends"`
}

// Synthesis contains configuration for the text-to-speech backend.
type Synthesis struct {
	Provider `toml:",inline"`
	Voice    string `toml:"voice"`
	// MaxSilenceMillis is the gap below which consecutive same-speaker
	// segments are merged before synthesis.
	MaxSilenceMillis int `toml:"max_silence_millis"`
}

// Extraction contains configuration for audio extraction from video URLs.
type Extraction struct {
	YouTubeAPIKey         string `toml:"youtube_api_key"`
	AttemptTimeoutSeconds int    `toml:"attempt_timeout_seconds"`
	// AllowPlaceholder keeps the last-resort silent-audio method in the chain.
	AllowPlaceholder bool `toml:"allow_placeholder"`
}

// Validation contains the composite score weight table.
type Validation struct {
	WeightsVersion string             `toml:"weights_version"`
	Weights        map[string]float64 `toml:"weights"`
	// EditRateMetrics lists metric names stored as error rates; their scores
	// are transformed with 1 - rate before weighting.
	EditRateMetrics []string `toml:"edit_rate_metrics"`
}

// Workflow contains stage timing configuration.
type Workflow struct {
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubflow.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Extraction    Extraction    `toml:"extraction"`
	Validation    Validation    `toml:"validation"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubflow/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. API keys absent from the
// file are resolved from the environment, with .env honored when present.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	fillFromEnv(&c.Transcription.APIKey, "SARVAM_API_KEY")
	fillFromEnv(&c.Synthesis.APIKey, "SARVAM_API_KEY")
	fillFromEnv(&c.Extraction.YouTubeAPIKey, "YOUTUBE_API_KEY")

	backends := make(map[string]Provider, len(c.Translation.Backends))
	for brand, backend := range c.Translation.Backends {
		brand = strings.ToLower(strings.TrimSpace(brand))
		if env, ok := backendKeyEnv[brand]; ok {
			fillFromEnv(&backend.APIKey, env)
		}
		backends[brand] = backend
	}
	c.Translation.Backends = backends

	for i, brand := range c.Translation.Order {
		c.Translation.Order[i] = strings.ToLower(strings.TrimSpace(brand))
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

var backendKeyEnv = map[string]string{
	"google": "GOOGLE_API_KEY",
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"llama":  "LLAMA_API_KEY",
	"sarvam": "SARVAM_API_KEY",
}

func fillFromEnv(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

// EnsureDirectories creates the required directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDir returns the artifact directory for a session.
func (c *Config) SessionDir(sessionID string) string {
	return filepath.Join(c.Paths.WorkspaceDir, sessionID)
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// DownloaderBinary returns the media downloader executable name.
func (c *Config) DownloaderBinary() string {
	return "yt-dlp"
}

// ExpandPath resolves ~ prefixes and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
