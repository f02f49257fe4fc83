package testsupport

import (
	"context"
	"testing"

	"dubflow/internal/config"
	"dubflow/internal/session"
	"dubflow/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates a session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, id, sourceLang, targetLang string) *session.Session {
	t.Helper()

	sess, err := st.CreateSession(context.Background(), id, sourceLang, targetLang)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return sess
}

// SeedSegments stores a small diarized segment set for a session.
func SeedSegments(t testing.TB, st *store.Store, sessionID string, kind store.ArtifactKind, segs []session.Segment) {
	t.Helper()

	if err := st.SaveSegments(context.Background(), sessionID, kind, segs); err != nil {
		t.Fatalf("store.SaveSegments: %v", err)
	}
}
