package stages_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/providers"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stages"
	"dubflow/internal/store"
	"dubflow/internal/testsupport"
	"dubflow/internal/validation"
)

type fixture struct {
	cfg     *config.Config
	store   *store.Store
	tracker *progress.Tracker
	sess    *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return &fixture{
		cfg:     cfg,
		store:   st,
		tracker: progress.NewTracker(st, logging.NewNop()),
		sess:    testsupport.NewSession(t, st, "sess-stage", "en", "hi"),
	}
}

type fakeTranscriber struct {
	segs []session.Segment
	lang string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) ([]session.Segment, string, error) {
	return f.segs, f.lang, f.err
}

type fakeTranslator struct {
	brand string
	err   error
	calls int
}

func (f *fakeTranslator) Brand() string { return f.brand }

func (f *fakeTranslator) Translate(ctx context.Context, segs []session.Segment, sourceLang, targetLang string) ([]session.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]session.Segment, len(segs))
	copy(out, segs)
	for i := range out {
		out[i].TranslatedText = f.brand + ":" + out[i].Text
	}
	return out, nil
}

type fakeSynthesizer struct {
	path     string
	err      error
	received []session.Segment
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, segs []session.Segment, voice providers.VoiceConfig) (string, error) {
	f.received = segs
	return f.path, f.err
}

type fakeMetric struct {
	name  string
	value float64
	err   error
}

func (f *fakeMetric) Name() string { return f.name }

func (f *fakeMetric) Compute(ctx context.Context, reference, candidate string) (float64, error) {
	return f.value, f.err
}

func TestTranscriberSavesCanonicalSegments(t *testing.T) {
	fx := newFixture(t)
	audio := filepath.Join(t.TempDir(), "in.mp3")
	testsupport.WriteFile(t, audio, 128)
	fx.sess.AudioPath = audio

	backend := &fakeTranscriber{
		segs: []session.Segment{
			{ID: 1, Start: 0, End: 1, Speaker: "speaker 1", Text: "hello"},
			{ID: 2, Start: 1, End: 2, Speaker: "SPEAKER_00", Text: "world"},
		},
		lang: "en-IN",
	}
	handler := stages.NewTranscriber(fx.store, fx.cfg, logging.NewNop(), fx.tracker, backend)

	if err := handler.Prepare(context.Background(), fx.sess); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), fx.sess); err != nil {
		t.Fatalf("execute: %v", err)
	}

	segs, err := fx.store.Segments(context.Background(), fx.sess.ID, store.ArtifactDiarization)
	if err != nil {
		t.Fatalf("load segments: %v", err)
	}
	if segs[0].Speaker != "SPEAKER_01" {
		t.Fatalf("speaker not canonicalized: %q", segs[0].Speaker)
	}
	raw, err := fx.store.Segments(context.Background(), fx.sess.ID, store.ArtifactDiarizationRaw)
	if err != nil {
		t.Fatalf("load raw baseline: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("raw baseline missing: %d", len(raw))
	}
	if fx.sess.SourceLanguage != "en" {
		// Source language was set at session creation; detection must not
		// overwrite it.
		t.Fatalf("detected language overwrote explicit one: %q", fx.sess.SourceLanguage)
	}
}

func TestTranscriberPrepareRequiresAudio(t *testing.T) {
	fx := newFixture(t)
	handler := stages.NewTranscriber(fx.store, fx.cfg, logging.NewNop(), fx.tracker, &fakeTranscriber{})

	err := handler.Prepare(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTranslatorFallsBackAcrossBackends(t *testing.T) {
	fx := newFixture(t)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactDiarization, []session.Segment{
		{ID: 1, Text: "hello"},
	})

	broken := &fakeTranslator{brand: "google", err: errors.New("quota exceeded")}
	working := &fakeTranslator{brand: "openai"}
	handler := stages.NewTranslator(fx.store, fx.cfg, logging.NewNop(), fx.tracker,
		[]providers.Translator{broken, working}, nil)

	if err := handler.Prepare(context.Background(), fx.sess); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), fx.sess); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if broken.calls != 1 || working.calls != 1 {
		t.Fatalf("expected fallback order google then openai, got %d/%d", broken.calls, working.calls)
	}

	segs, err := fx.store.Segments(context.Background(), fx.sess.ID, store.ArtifactTranslation)
	if err != nil {
		t.Fatalf("load translation: %v", err)
	}
	if segs[0].TranslatedText != "openai:hello" {
		t.Fatalf("unexpected translation %q", segs[0].TranslatedText)
	}
}

func TestTranslatorExhaustionFailsStage(t *testing.T) {
	fx := newFixture(t)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactDiarization, []session.Segment{
		{ID: 1, Text: "hello"},
	})

	handler := stages.NewTranslator(fx.store, fx.cfg, logging.NewNop(), fx.tracker,
		[]providers.Translator{
			&fakeTranslator{brand: "google", err: errors.New("down")},
			&fakeTranslator{brand: "openai", err: errors.New("also down")},
		}, nil)

	err := handler.Execute(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error after exhaustion, got %v", err)
	}
	if _, err := fx.store.Segments(context.Background(), fx.sess.ID, store.ArtifactTranslation); err == nil {
		t.Fatal("failed translation must not leave an artifact")
	}
}

func TestSynthesizerMergesBeforeSynthesis(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Synthesis.MaxSilenceMillis = 500
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactTranslation, []session.Segment{
		{ID: 1, Start: 0, End: 1, Speaker: "SPEAKER_00", Text: "a", TranslatedText: "x"},
		{ID: 2, Start: 1.2, End: 2, Speaker: "SPEAKER_00", Text: "b", TranslatedText: "y"},
		{ID: 3, Start: 5, End: 6, Speaker: "SPEAKER_01", Text: "c", TranslatedText: "z"},
	})

	out := filepath.Join(t.TempDir(), "synth.wav")
	backend := &fakeSynthesizer{path: out}
	handler := stages.NewSynthesizer(fx.store, fx.cfg, logging.NewNop(), fx.tracker, backend)

	if err := handler.Prepare(context.Background(), fx.sess); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), fx.sess); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(backend.received) != 2 {
		t.Fatalf("expected merged segments, got %d", len(backend.received))
	}
	if fx.sess.SynthesisPath != out {
		t.Fatalf("synthesis path not recorded: %q", fx.sess.SynthesisPath)
	}
}

func TestSynthesizerPrepareRequiresTranslatedText(t *testing.T) {
	fx := newFixture(t)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactTranslation, []session.Segment{
		{ID: 1, Text: "untranslated"},
	})
	handler := stages.NewSynthesizer(fx.store, fx.cfg, logging.NewNop(), fx.tracker, &fakeSynthesizer{})

	err := handler.Prepare(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestValidatorComputesEditAndInjectedMetrics(t *testing.T) {
	fx := newFixture(t)
	raw := []session.Segment{
		{ID: 1, Speaker: "SPEAKER_00", Text: "the quick brown fox", TranslatedText: "one two three four"},
	}
	// One of four reference words changed: edit rate 0.25.
	edited := []session.Segment{
		{ID: 1, Speaker: "SPEAKER_00", Text: "the quick red fox", TranslatedText: "one two three four"},
	}
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactDiarizationRaw, raw)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactDiarization, edited)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactTranslationRaw, raw)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactTranslation, edited)

	scorer := validation.NewScorer(fx.cfg.Validation)
	handler := stages.NewValidator(fx.store, fx.cfg, logging.NewNop(), fx.tracker, scorer,
		[]providers.MetricComputer{&fakeMetric{name: "semantic", value: 0.9}})

	if err := handler.Execute(context.Background(), fx.sess); err != nil {
		t.Fatalf("execute: %v", err)
	}

	result, err := fx.store.Validation(context.Background(), fx.sess.ID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if result.Metrics["semantic"] != 0.9 {
		t.Fatalf("semantic metric missing: %+v", result.Metrics)
	}
	if got := result.Metrics["transcription_edit"]; got != 0.25 {
		t.Fatalf("expected transcription edit rate 0.25, got %v", got)
	}
	if got := result.Metrics["translation_edit"]; got != 0 {
		t.Fatalf("expected translation edit rate 0, got %v", got)
	}
	if result.Composite <= 0 || result.Composite > 100 {
		t.Fatalf("composite out of bounds: %v", result.Composite)
	}
}

func TestValidatorUsesConfiguredWeights(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWeights("semantic-only", map[string]float64{"semantic": 1.0}))
	st := testsupport.MustOpenStore(t, cfg)
	tracker := progress.NewTracker(st, logging.NewNop())
	sess := testsupport.NewSession(t, st, "sess-weights", "en", "hi")
	testsupport.SeedSegments(t, st, sess.ID, store.ArtifactTranslation, []session.Segment{
		{ID: 1, Text: "a", TranslatedText: "b"},
	})

	scorer := validation.NewScorer(cfg.Validation)
	handler := stages.NewValidator(st, cfg, logging.NewNop(), tracker, scorer,
		[]providers.MetricComputer{&fakeMetric{name: "semantic", value: 0.9}})

	if err := handler.Execute(context.Background(), sess); err != nil {
		t.Fatalf("execute: %v", err)
	}
	result, err := st.Validation(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if result.Composite != 90 {
		t.Fatalf("expected composite 90 under semantic-only weights, got %v", result.Composite)
	}
	if result.WeightsVersion != "semantic-only" {
		t.Fatalf("weights version not recorded: %q", result.WeightsVersion)
	}
}

func TestValidatorSkipsFailingMetricComputer(t *testing.T) {
	fx := newFixture(t)
	testsupport.SeedSegments(t, fx.store, fx.sess.ID, store.ArtifactTranslation, []session.Segment{
		{ID: 1, Text: "a", TranslatedText: "b"},
	})

	scorer := validation.NewScorer(fx.cfg.Validation)
	handler := stages.NewValidator(fx.store, fx.cfg, logging.NewNop(), fx.tracker, scorer,
		[]providers.MetricComputer{&fakeMetric{name: "semantic", err: fmt.Errorf("llm down")}})

	if err := handler.Execute(context.Background(), fx.sess); err != nil {
		t.Fatalf("metric failure must not fail the stage: %v", err)
	}
	result, err := fx.store.Validation(context.Background(), fx.sess.ID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if _, ok := result.Metrics["semantic"]; ok {
		t.Fatal("failed metric must be omitted, not zeroed")
	}
}
