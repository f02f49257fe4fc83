package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"dubflow/internal/logging"
	"dubflow/internal/pipeline"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/testsupport"
)

func TestBuildWiresEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	orch, err := pipeline.Build(cfg, logging.NewNop(), st)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	health := orch.Health(context.Background())
	if len(health) != len(session.ActionOrder()) {
		t.Fatalf("expected one health entry per action, got %d", len(health))
	}
	for _, h := range health {
		if !h.Ready {
			t.Fatalf("stage %s not ready: %s", h.Name, h.Detail)
		}
	}
}

func TestBuildRejectsUnknownTranslationBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTranslationOrder("carrier-pigeon"))
	st := testsupport.MustOpenStore(t, cfg)

	_, err := pipeline.Build(cfg, logging.NewNop(), st)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
