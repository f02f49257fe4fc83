package validation

import (
	"time"

	"dubflow/internal/config"
	"dubflow/internal/session"
)

// Scorer combines independently computed sub-metrics into one composite
// score using a fixed, versioned weight table.
type Scorer struct {
	weights   map[string]float64
	version   string
	editRates map[string]struct{}
}

// NewScorer builds a scorer from the validated configuration weight table.
// Config validation has already enforced that weights sum to 1.0.
func NewScorer(cfg config.Validation) *Scorer {
	weights := make(map[string]float64, len(cfg.Weights))
	for metric, weight := range cfg.Weights {
		weights[metric] = weight
	}
	editRates := make(map[string]struct{}, len(cfg.EditRateMetrics))
	for _, metric := range cfg.EditRateMetrics {
		editRates[metric] = struct{}{}
	}
	return &Scorer{weights: weights, version: cfg.WeightsVersion, editRates: editRates}
}

// Version returns the weight table version.
func (s *Scorer) Version() string {
	return s.version
}

// Score computes the composite for the supplied raw metrics. Edit-rate
// metrics are transformed with 1 - rate; other metrics are used as-is.
// Metrics absent from the input are excluded and the remaining weights are
// renormalized rather than letting a missing metric drag the composite down.
// The composite is scaled to 0-100. The result is immutable once computed;
// a new validation overwrites rather than merges.
func (s *Scorer) Score(metrics map[string]float64) session.ValidationResult {
	var weightSum, weighted float64
	for metric, weight := range s.weights {
		raw, ok := metrics[metric]
		if !ok {
			continue
		}
		weightSum += weight
		weighted += weight * s.transform(metric, raw)
	}

	var composite float64
	if weightSum > 0 {
		composite = weighted / weightSum * 100
	}
	composite = clampComposite(composite)

	recorded := make(map[string]float64, len(metrics))
	for metric, raw := range metrics {
		recorded[metric] = raw
	}
	return session.ValidationResult{
		Metrics:        recorded,
		Composite:      composite,
		WeightsVersion: s.version,
		ComputedAt:     time.Now().UTC(),
	}
}

func (s *Scorer) transform(metric string, raw float64) float64 {
	if _, ok := s.editRates[metric]; ok {
		raw = 1 - raw
	}
	switch {
	case raw < 0:
		return 0
	case raw > 1:
		return 1
	default:
		return raw
	}
}

func clampComposite(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
