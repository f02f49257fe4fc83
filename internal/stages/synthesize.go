package stages

import (
	"context"
	"log/slog"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/providers"
	"dubflow/internal/segments"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stage"
	"dubflow/internal/store"
)

// Synthesizer renders translated segments into target-language speech.
type Synthesizer struct {
	store   *store.Store
	cfg     *config.Config
	logger  *slog.Logger
	tracker *progress.Tracker
	backend providers.Synthesizer
}

// NewSynthesizer constructs the synthesis stage handler.
func NewSynthesizer(st *store.Store, cfg *config.Config, logger *slog.Logger, tracker *progress.Tracker, backend providers.Synthesizer) *Synthesizer {
	return &Synthesizer{
		store:   st,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "synthesize"),
		tracker: tracker,
		backend: backend,
	}
}

func (s *Synthesizer) Prepare(ctx context.Context, sess *session.Session) error {
	segs, err := s.store.Segments(ctx, sess.ID, store.ArtifactTranslation)
	if err != nil {
		return services.Wrap(services.ErrPrecondition, "synthesize", "prepare", "no translation artifact for session", err)
	}
	for _, seg := range segs {
		if seg.TranslatedText != "" {
			return nil
		}
	}
	return services.Wrap(services.ErrPrecondition, "synthesize", "prepare", "translation artifact has no translated text", nil)
}

func (s *Synthesizer) Execute(ctx context.Context, sess *session.Session) error {
	segs, err := s.store.Segments(ctx, sess.ID, store.ArtifactTranslation)
	if err != nil {
		return err
	}
	_ = s.tracker.Set(ctx, sess.ID, string(session.StageSynthesizing), "merging segments", 10)

	// Merging adjacent same-speaker segments cuts request count and avoids
	// unnatural pauses at sub-silence gaps.
	maxSilence := time.Duration(s.cfg.Synthesis.MaxSilenceMillis) * time.Millisecond
	merged := segments.Merge(segs, maxSilence)

	_ = s.tracker.Set(ctx, sess.ID, string(session.StageSynthesizing), "synthesizing speech", 30)
	voice := providers.VoiceConfig{
		Voice:    s.cfg.Synthesis.Voice,
		Language: sess.TargetLanguage,
	}
	outPath, err := s.backend.Synthesize(ctx, merged, voice)
	if err != nil {
		_ = s.tracker.Fail(ctx, sess.ID, string(session.StageSynthesizing), "synthesis failed")
		return err
	}
	sess.SynthesisPath = outPath

	s.logger.Info("synthesis complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Int("merged_segments", len(merged)),
		logging.String("output", outPath))
	_ = s.tracker.Complete(ctx, sess.ID, string(session.StageSynthesizing), "synthesis complete")
	return nil
}

func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	if s.backend == nil {
		return stage.Unhealthy("synthesize", "no synthesis backend configured")
	}
	if s.cfg.Synthesis.APIKey == "" {
		return stage.Unhealthy("synthesize", "synthesis API key missing")
	}
	return stage.Healthy("synthesize")
}
