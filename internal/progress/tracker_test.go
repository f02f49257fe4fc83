package progress_test

import (
	"context"
	"testing"

	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/store"
	"dubflow/internal/testsupport"
)

func newTracker(t *testing.T) (*progress.Tracker, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, st, "sess-progress", "en", "hi")
	return progress.NewTracker(st, logging.NewNop()), st, sess.ID
}

func TestSetNeverDecreasesWithinStage(t *testing.T) {
	tracker, _, id := newTracker(t)
	ctx := context.Background()

	if err := tracker.Set(ctx, id, "transcribing", "uploading", 40); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tracker.Set(ctx, id, "transcribing", "late update", 10); err != nil {
		t.Fatalf("set: %v", err)
	}

	record, ok, err := tracker.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if record.Percent != 40 {
		t.Fatalf("percent regressed to %v", record.Percent)
	}
	if record.Message != "late update" {
		t.Fatalf("message should still advance, got %q", record.Message)
	}
}

func TestSetClampsPercent(t *testing.T) {
	tracker, _, id := newTracker(t)
	ctx := context.Background()

	if err := tracker.Set(ctx, id, "translating", "", 150); err != nil {
		t.Fatalf("set: %v", err)
	}
	record, _, _ := tracker.Get(ctx, id)
	if record.Percent != 100 {
		t.Fatalf("expected clamp to 100, got %v", record.Percent)
	}

	if err := tracker.Set(ctx, id, "synthesizing", "", -5); err != nil {
		t.Fatalf("set: %v", err)
	}
	record, _, _ = tracker.Get(ctx, id)
	if record.Percent != 0 {
		t.Fatalf("expected clamp to 0 on new stage, got %v", record.Percent)
	}
}

func TestStageChangeResetsPercent(t *testing.T) {
	tracker, _, id := newTracker(t)
	ctx := context.Background()

	_ = tracker.Set(ctx, id, "transcribing", "", 90)
	_ = tracker.Set(ctx, id, "translating", "", 5)

	record, _, _ := tracker.Get(ctx, id)
	if record.Stage != "translating" || record.Percent != 5 {
		t.Fatalf("new stage should restart progress, got %s %v", record.Stage, record.Percent)
	}
}

func TestTerminalRecordFreezesUntilStageChange(t *testing.T) {
	tracker, _, id := newTracker(t)
	ctx := context.Background()

	if err := tracker.Complete(ctx, id, "transcribing", "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tracker.Set(ctx, id, "transcribing", "straggler", 50); err != nil {
		t.Fatalf("set: %v", err)
	}

	record, _, _ := tracker.Get(ctx, id)
	if !record.Completed || record.Percent != 100 || record.Message != "done" {
		t.Fatalf("terminal record mutated: %+v", record)
	}

	if err := tracker.Set(ctx, id, "translating", "next stage", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	record, _, _ = tracker.Get(ctx, id)
	if record.Stage != "translating" {
		t.Fatalf("stage change should unfreeze, got %s", record.Stage)
	}
}

func TestFailMarksError(t *testing.T) {
	tracker, _, id := newTracker(t)
	ctx := context.Background()

	_ = tracker.Set(ctx, id, "translating", "", 60)
	if err := tracker.Fail(ctx, id, "translating", "backend down"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	record, _, _ := tracker.Get(ctx, id)
	if !record.Error {
		t.Fatal("expected error flag")
	}
	if !record.Terminal() {
		t.Fatal("failed record should be terminal")
	}
}

func TestGetFallsBackToPersistedState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, st, "sess-restart", "en", "hi")
	ctx := context.Background()

	first := progress.NewTracker(st, logging.NewNop())
	if err := first.Set(ctx, sess.ID, "synthesizing", "halfway", 50); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A fresh tracker simulates a process restart sharing the same store.
	second := progress.NewTracker(st, logging.NewNop())
	record, ok, err := second.Get(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("get after restart: ok=%v err=%v", ok, err)
	}
	if record.Stage != "synthesizing" || record.Percent != 50 {
		t.Fatalf("persisted record wrong: %+v", record)
	}
}

func TestForgetDropsRecord(t *testing.T) {
	tracker, st, id := newTracker(t)
	ctx := context.Background()

	_ = tracker.Set(ctx, id, "transcribing", "", 30)
	if err := st.ResetSession(ctx, id); err != nil {
		t.Fatalf("reset session: %v", err)
	}
	tracker.Forget(id)

	_, ok, err := tracker.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("forgotten session should report no progress")
	}
}
