package config

const (
	defaultWorkspaceDir          = "~/.local/share/dubflow/workspace"
	defaultLogDir                = "~/.local/share/dubflow/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultStageTimeoutSeconds   = 600
	defaultPollIntervalSeconds   = 2
	defaultAttemptTimeoutSeconds = 120
	defaultRequestsPerMinute     = 60
	defaultProviderTimeout       = 60
	defaultMaxSilenceMillis      = 500
	defaultWeightsVersion        = "v1"
	defaultSarvamBaseURL         = "https://api.sarvam.ai"
	defaultChatBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultVoice                 = "meera"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Transcription: Transcription{
			Provider: Provider{
				BaseURL:        defaultSarvamBaseURL,
				Model:          "saarika:v2",
				TimeoutSeconds: defaultProviderTimeout,
			},
			Diarize: true,
		},
		Translation: Translation{
			Order:             []string{"sarvam", "google", "openai"},
			RequestsPerMinute: defaultRequestsPerMinute,
			Backends: map[string]Provider{
				"sarvam": {BaseURL: defaultSarvamBaseURL, Model: "mayura:v1", TimeoutSeconds: defaultProviderTimeout},
				"google": {BaseURL: defaultChatBaseURL, Model: "google/gemini-flash-1.5", TimeoutSeconds: defaultProviderTimeout},
				"openai": {BaseURL: defaultChatBaseURL, Model: "openai/gpt-4o-mini", TimeoutSeconds: defaultProviderTimeout},
				"claude": {BaseURL: defaultChatBaseURL, Model: "anthropic/claude-3.5-sonnet", TimeoutSeconds: defaultProviderTimeout},
				"llama":  {BaseURL: defaultChatBaseURL, Model: "meta-llama/llama-3.1-70b-instruct", TimeoutSeconds: defaultProviderTimeout},
			},
		},
		Synthesis: Synthesis{
			Provider: Provider{
				BaseURL:        defaultSarvamBaseURL,
				Model:          "bulbul:v1",
				TimeoutSeconds: defaultProviderTimeout,
			},
			Voice:            defaultVoice,
			MaxSilenceMillis: defaultMaxSilenceMillis,
		},
		Extraction: Extraction{
			AttemptTimeoutSeconds: defaultAttemptTimeoutSeconds,
			AllowPlaceholder:      true,
		},
		Validation: Validation{
			WeightsVersion: defaultWeightsVersion,
			Weights: map[string]float64{
				"semantic":           0.3,
				"transcription_edit": 0.2,
				"diarization":        0.2,
				"translation_edit":   0.3,
			},
			EditRateMetrics: []string{"transcription_edit", "translation_edit"},
		},
		Workflow: Workflow{
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
