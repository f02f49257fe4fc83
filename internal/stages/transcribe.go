package stages

import (
	"context"
	"log/slog"
	"os"
	"strings"

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

// Transcriber turns a session's source audio into diarized segments.
type Transcriber struct {
	store       *store.Store
	cfg         *config.Config
	logger      *slog.Logger
	tracker     *progress.Tracker
	transcriber providers.Transcriber
}

// NewTranscriber constructs the transcription stage handler.
func NewTranscriber(st *store.Store, cfg *config.Config, logger *slog.Logger, tracker *progress.Tracker, backend providers.Transcriber) *Transcriber {
	return &Transcriber{
		store:       st,
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
		tracker:     tracker,
		transcriber: backend,
	}
}

func (t *Transcriber) Prepare(ctx context.Context, sess *session.Session) error {
	if strings.TrimSpace(sess.AudioPath) == "" {
		return services.Wrap(services.ErrPrecondition, "transcribe", "prepare", "session has no source audio", nil)
	}
	if _, err := os.Stat(sess.AudioPath); err != nil {
		return services.Wrap(services.ErrPrecondition, "transcribe", "prepare", "source audio file missing", err)
	}
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, sess *session.Session) error {
	_ = t.tracker.Set(ctx, sess.ID, string(session.StageTranscribing), "uploading audio", 10)

	segs, detected, err := t.transcriber.Transcribe(ctx, sess.AudioPath)
	if err != nil {
		_ = t.tracker.Fail(ctx, sess.ID, string(session.StageTranscribing), "transcription failed")
		return err
	}
	_ = t.tracker.Set(ctx, sess.ID, string(session.StageTranscribing), "normalizing speakers", 70)

	for i := range segs {
		segs[i].Speaker = segments.CanonicalSpeaker(segs[i].Speaker)
	}
	if sess.SourceLanguage == "" && detected != "" {
		sess.SourceLanguage = detected
	}

	if err := t.store.SaveSegments(ctx, sess.ID, store.ArtifactDiarizationRaw, segs); err != nil {
		return err
	}
	if err := t.store.SaveSegments(ctx, sess.ID, store.ArtifactDiarization, segs); err != nil {
		return err
	}

	t.logger.Info("transcription complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Int("segments", len(segs)),
		logging.String("detected_language", detected))
	_ = t.tracker.Complete(ctx, sess.ID, string(session.StageTranscribing), "transcription complete")
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if t.transcriber == nil {
		return stage.Unhealthy("transcribe", "no transcription backend configured")
	}
	if t.cfg.Transcription.APIKey == "" {
		return stage.Unhealthy("transcribe", "transcription API key missing")
	}
	return stage.Healthy("transcribe")
}
