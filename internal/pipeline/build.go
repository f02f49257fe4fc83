package pipeline

import (
	"fmt"
	"log/slog"

	"dubflow/internal/config"
	"dubflow/internal/extract"
	"dubflow/internal/progress"
	"dubflow/internal/providers"
	"dubflow/internal/providers/chat"
	"dubflow/internal/providers/sarvam"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stage"
	"dubflow/internal/stages"
	"dubflow/internal/store"
	"dubflow/internal/validation"
)

// Build assembles a fully wired orchestrator from configuration: one
// transcription and synthesis backend, the translation backends in their
// configured fallback order, and the validation scorer.
func Build(cfg *config.Config, logger *slog.Logger, st *store.Store) (*Orchestrator, error) {
	tracker := progress.NewTracker(st, logger)
	extractor := extract.NewExtractor(cfg, logger)

	speech := sarvam.NewClient(sarvam.Config{
		APIKey:         cfg.Transcription.APIKey,
		BaseURL:        cfg.Transcription.BaseURL,
		Model:          cfg.Transcription.Model,
		TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		Diarize:        cfg.Transcription.Diarize,
	})

	translators, err := buildTranslators(cfg)
	if err != nil {
		return nil, err
	}

	synth := sarvam.NewClient(sarvam.Config{
		APIKey:         cfg.Synthesis.APIKey,
		BaseURL:        cfg.Synthesis.BaseURL,
		Model:          cfg.Synthesis.Model,
		TimeoutSeconds: cfg.Synthesis.TimeoutSeconds,
		OutputDir:      cfg.Paths.WorkspaceDir,
	})

	scorer := validation.NewScorer(cfg.Validation)
	limiters := providers.NewLimiterPool()

	handlers := map[session.Action]stage.Handler{
		session.ActionTranscribe: stages.NewTranscriber(st, cfg, logger, tracker, speech),
		session.ActionTranslate:  stages.NewTranslator(st, cfg, logger, tracker, translators, limiters),
		session.ActionSynthesize: stages.NewSynthesizer(st, cfg, logger, tracker, synth),
		session.ActionValidate:   stages.NewValidator(st, cfg, logger, tracker, scorer, nil),
	}
	return NewOrchestrator(st, cfg, logger, tracker, extractor, handlers), nil
}

// buildTranslators instantiates one translation backend per configured brand,
// preserving the fallback order.
func buildTranslators(cfg *config.Config) ([]providers.Translator, error) {
	translators := make([]providers.Translator, 0, len(cfg.Translation.Order))
	for _, brand := range cfg.Translation.Order {
		backend, ok := cfg.Translation.Backends[brand]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "build",
				fmt.Sprintf("translation order names unknown backend %q", brand), nil)
		}
		switch brand {
		case "sarvam":
			translators = append(translators, sarvam.NewClient(sarvam.Config{
				APIKey:         backend.APIKey,
				BaseURL:        backend.BaseURL,
				Model:          backend.Model,
				TimeoutSeconds: backend.TimeoutSeconds,
			}))
		default:
			translators = append(translators, chat.NewClient(chat.Config{
				Brand:          brand,
				APIKey:         backend.APIKey,
				BaseURL:        backend.BaseURL,
				Model:          backend.Model,
				TimeoutSeconds: backend.TimeoutSeconds,
			}))
		}
	}
	return translators, nil
}
