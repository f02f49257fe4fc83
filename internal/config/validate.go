package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const weightSumTolerance = 1e-6

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if len(c.Translation.Order) == 0 {
		return errors.New("translation.order must list at least one backend")
	}
	seen := make(map[string]struct{}, len(c.Translation.Order))
	for _, brand := range c.Translation.Order {
		if _, ok := c.Translation.Backends[brand]; !ok {
			return fmt.Errorf("translation.order references unknown backend %q", brand)
		}
		if _, dup := seen[brand]; dup {
			return fmt.Errorf("translation.order lists backend %q twice", brand)
		}
		seen[brand] = struct{}{}
	}
	if c.Translation.RequestsPerMinute <= 0 {
		return errors.New("translation.requests_per_minute must be positive")
	}
	for brand, backend := range c.Translation.Backends {
		if strings.TrimSpace(backend.BaseURL) == "" {
			return fmt.Errorf("translation.backends.%s.base_url must be set", brand)
		}
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if strings.TrimSpace(c.Synthesis.Voice) == "" {
		return errors.New("synthesis.voice must be set")
	}
	if c.Synthesis.MaxSilenceMillis < 0 {
		return errors.New("synthesis.max_silence_millis must not be negative")
	}
	return nil
}

// validateValidation enforces the weight table invariant: weights are
// configuration data and must sum to 1.0 up front, not be repaired at runtime.
func (c *Config) validateValidation() error {
	if len(c.Validation.Weights) == 0 {
		return errors.New("validation.weights must define at least one metric")
	}
	var sum float64
	for metric, weight := range c.Validation.Weights {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("validation.weights.%s must be between 0 and 1", metric)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("validation.weights must sum to 1.0, got %.6f", sum)
	}
	for _, metric := range c.Validation.EditRateMetrics {
		if _, ok := c.Validation.Weights[metric]; !ok {
			return fmt.Errorf("validation.edit_rate_metrics references unweighted metric %q", metric)
		}
	}
	if strings.TrimSpace(c.Validation.WeightsVersion) == "" {
		return errors.New("validation.weights_version must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.StageTimeoutSeconds <= 0 {
		return errors.New("workflow.stage_timeout_seconds must be positive")
	}
	if c.Workflow.PollIntervalSeconds <= 0 {
		return errors.New("workflow.poll_interval_seconds must be positive")
	}
	if c.Extraction.AttemptTimeoutSeconds <= 0 {
		return errors.New("extraction.attempt_timeout_seconds must be positive")
	}
	return nil
}
