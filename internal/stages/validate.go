package stages

import (
	"context"
	"fmt"
	"log/slog"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/providers"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stage"
	"dubflow/internal/store"
	"dubflow/internal/validation"
)

// Validator scores the finished dub. Edit-rate and diarization metrics are
// computed locally from the stored artifacts; remaining metrics (semantic
// similarity) come from the injected computers. Metrics that cannot be
// computed are omitted and the scorer renormalizes the weight table.
type Validator struct {
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	tracker   *progress.Tracker
	scorer    *validation.Scorer
	computers []providers.MetricComputer
}

// NewValidator constructs the validation stage handler.
func NewValidator(st *store.Store, cfg *config.Config, logger *slog.Logger, tracker *progress.Tracker, scorer *validation.Scorer, computers []providers.MetricComputer) *Validator {
	return &Validator{
		store:     st,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "validate"),
		tracker:   tracker,
		scorer:    scorer,
		computers: computers,
	}
}

func (v *Validator) Prepare(ctx context.Context, sess *session.Session) error {
	if _, err := v.store.Segments(ctx, sess.ID, store.ArtifactTranslation); err != nil {
		return services.Wrap(services.ErrPrecondition, "validate", "prepare", "no translation artifact for session", err)
	}
	return nil
}

func (v *Validator) Execute(ctx context.Context, sess *session.Session) error {
	_ = v.tracker.Set(ctx, sess.ID, string(session.StageValidating), "computing metrics", 10)

	metrics := make(map[string]float64)
	v.editMetrics(ctx, sess.ID, metrics)

	edited, err := v.store.Segments(ctx, sess.ID, store.ArtifactTranslation)
	if err != nil {
		return err
	}
	reference := session.Transcript(edited)
	candidate := session.TranslatedTranscript(edited)
	for _, computer := range v.computers {
		value, err := computer.Compute(ctx, reference, candidate)
		if err != nil {
			// A missing metric lowers confidence, not the score; the weight
			// table renormalizes around it.
			v.logger.Warn("metric unavailable",
				logging.String(logging.FieldSessionID, sess.ID),
				logging.String("metric", computer.Name()),
				logging.Error(err))
			continue
		}
		metrics[computer.Name()] = value
	}

	result := v.scorer.Score(metrics)
	if err := v.store.SaveValidation(ctx, sess.ID, result); err != nil {
		return err
	}

	v.logger.Info("validation complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Float64("composite", result.Composite),
		logging.Int("metrics", len(result.Metrics)))
	_ = v.tracker.Complete(ctx, sess.ID, string(session.StageValidating),
		fmt.Sprintf("composite score %.1f", result.Composite))
	return nil
}

// editMetrics derives the edit-rate and diarization metrics by comparing the
// machine artifacts against their edited counterparts. Sessions whose raw
// artifacts are missing (created before the baselines existed) simply omit
// those metrics.
func (v *Validator) editMetrics(ctx context.Context, sessionID string, metrics map[string]float64) {
	rawT, errRaw := v.store.Segments(ctx, sessionID, store.ArtifactDiarizationRaw)
	edited, errEdited := v.store.Segments(ctx, sessionID, store.ArtifactDiarization)
	if errRaw == nil && errEdited == nil {
		metrics["transcription_edit"] = validation.WordEditRate(
			session.Transcript(rawT), session.Transcript(edited))
		metrics["diarization"] = validation.SpeakerChangeAccuracy(
			speakerLabels(rawT), speakerLabels(edited))
	}

	rawTr, errRawTr := v.store.Segments(ctx, sessionID, store.ArtifactTranslationRaw)
	editedTr, errEditedTr := v.store.Segments(ctx, sessionID, store.ArtifactTranslation)
	if errRawTr == nil && errEditedTr == nil {
		metrics["translation_edit"] = validation.WordEditRate(
			session.TranslatedTranscript(rawTr), session.TranslatedTranscript(editedTr))
	}
}

func speakerLabels(segs []session.Segment) []string {
	labels := make([]string, len(segs))
	for i, seg := range segs {
		labels[i] = seg.Speaker
	}
	return labels
}

func (v *Validator) HealthCheck(ctx context.Context) stage.Health {
	if v.scorer == nil {
		return stage.Unhealthy("validate", "no scorer configured")
	}
	return stage.Healthy("validate")
}
