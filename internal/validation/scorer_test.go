package validation_test

import (
	"math"
	"testing"

	"dubflow/internal/config"
	"dubflow/internal/validation"
)

func TestScoreCompositeWithEditRateTransform(t *testing.T) {
	scorer := validation.NewScorer(config.Validation{
		WeightsVersion:  "v-test",
		Weights:         map[string]float64{"semantic": 0.6, "edit_rate": 0.4},
		EditRateMetrics: []string{"edit_rate"},
	})

	result := scorer.Score(map[string]float64{
		"semantic":  0.9,
		"edit_rate": 0.1,
	})
	// semantic contributes 0.9, edit_rate contributes 1-0.1=0.9.
	if math.Abs(result.Composite-90) > 1e-9 {
		t.Fatalf("expected composite 90, got %v", result.Composite)
	}
	if result.WeightsVersion != "v-test" {
		t.Fatalf("unexpected weights version %q", result.WeightsVersion)
	}
	if result.Metrics["edit_rate"] != 0.1 {
		t.Fatal("recorded metrics must keep raw values")
	}
}

func TestScoreRenormalizesMissingMetrics(t *testing.T) {
	scorer := validation.NewScorer(config.Validation{
		WeightsVersion: "v-test",
		Weights: map[string]float64{
			"semantic":    0.5,
			"diarization": 0.5,
		},
	})

	result := scorer.Score(map[string]float64{"semantic": 0.8})
	// Only semantic present; its weight renormalizes to 1.0.
	if math.Abs(result.Composite-80) > 1e-9 {
		t.Fatalf("expected composite 80 after renormalization, got %v", result.Composite)
	}
}

func TestScoreNoMetricsIsZero(t *testing.T) {
	scorer := validation.NewScorer(config.Default().Validation)
	result := scorer.Score(nil)
	if result.Composite != 0 {
		t.Fatalf("expected 0 with no metrics, got %v", result.Composite)
	}
}

func TestScoreBounds(t *testing.T) {
	scorer := validation.NewScorer(config.Validation{
		Weights:         map[string]float64{"m": 1.0},
		EditRateMetrics: []string{"m"},
	})

	// A rate above 1 transforms negative and must clamp at 0.
	low := scorer.Score(map[string]float64{"m": 1.7})
	if low.Composite != 0 {
		t.Fatalf("expected floor of 0, got %v", low.Composite)
	}
	// A negative rate transforms above 1 and must clamp at 100.
	high := scorer.Score(map[string]float64{"m": -0.5})
	if high.Composite != 100 {
		t.Fatalf("expected ceiling of 100, got %v", high.Composite)
	}
}

func TestScoreDefaultWeightsCoverAllMetrics(t *testing.T) {
	cfg := config.Default().Validation
	scorer := validation.NewScorer(cfg)

	result := scorer.Score(map[string]float64{
		"semantic":           1,
		"transcription_edit": 0,
		"diarization":        1,
		"translation_edit":   0,
	})
	if math.Abs(result.Composite-100) > 1e-9 {
		t.Fatalf("perfect metrics should score 100, got %v", result.Composite)
	}
}
