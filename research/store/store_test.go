package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/research"
	"github.com/sweetpotato0/deepresearch/search"
)

func testSession(id string, createdAt time.Time) *research.Session {
	return &research.Session{
		ID:        id,
		Query:     "how do tides work",
		Status:    research.StatusComplete,
		Notes:     []search.Note{{SubQuestionID: "sq-1", Content: "original"}},
		Round:     1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemorySaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	session := testSession("s-1", time.Now().UTC())
	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != "s-1" || loaded.Query != session.Query || loaded.Status != research.StatusComplete {
		t.Errorf("loaded %+v", loaded)
	}
}

func TestMemoryCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	session := testSession("s-1", time.Now().UTC())
	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutations after Save must not reach the store.
	session.Notes[0].Content = "mutated after save"

	loaded, err := s.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Notes[0].Content != "original" {
		t.Error("store shares memory with the saved session")
	}

	// Mutations of a loaded copy must not reach the store either.
	loaded.Notes[0].Content = "mutated after load"
	again, err := s.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if again.Notes[0].Content != "original" {
		t.Error("store shares memory with loaded sessions")
	}
}

func TestMemoryLoadMissing(t *testing.T) {
	s := NewMemory()
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Errorf("Load error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Save(ctx, testSession(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q (newest first)", i, ids[i], want[i])
		}
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if err := s.Save(ctx, testSession("s-1", time.Now().UTC())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "s-1"); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Errorf("Load after delete = %v, want ErrSessionNotFound", err)
	}
	if err := s.Delete(ctx, "s-1"); err != nil {
		t.Errorf("deleting a missing session should not error, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestMemoryRejectsInvalidSessions(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Save(ctx, nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Save(nil) = %v, want ErrInvalidInput", err)
	}
	if err := s.Save(ctx, &research.Session{}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("Save without ID = %v, want ErrInvalidInput", err)
	}
}

// TestMongoRoundTrip requires a running MongoDB server. Set
// DEEPRESEARCH_MONGO_URI to run it.
func TestMongoRoundTrip(t *testing.T) {
	uri := os.Getenv("DEEPRESEARCH_MONGO_URI")
	if uri == "" {
		t.Skip("DEEPRESEARCH_MONGO_URI not set, skipping MongoDB store tests")
	}

	s, err := NewMongo(&MongoConfig{
		URI:        uri,
		Database:   "deepresearch_test",
		Collection: "sessions_test",
	})
	if err != nil {
		t.Skipf("failed to connect to MongoDB: %v", err)
	}
	ctx := context.Background()
	defer s.Close(ctx)

	session := testSession("mongo-s-1", time.Now().UTC())
	defer s.Delete(ctx, session.ID)

	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Query != session.Query || loaded.Notes[0].Content != "original" {
		t.Errorf("loaded %+v", loaded)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == session.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("List does not contain %q: %v", session.ID, ids)
	}

	if err := s.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, session.ID); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Errorf("Load after delete = %v, want ErrSessionNotFound", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DEEPRESEARCH_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("DEEPRESEARCH_REDIS_DB", "2")
	t.Setenv("DEEPRESEARCH_REDIS_TTL", "48h")

	cfg := RedisConfigFromEnv()
	if cfg.Addr != "redis.internal:6380" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DB != 2 {
		t.Errorf("DB = %d, want 2", cfg.DB)
	}
	if cfg.TTL != 48*time.Hour {
		t.Errorf("TTL = %v, want 48h", cfg.TTL)
	}
	if cfg.Prefix != defaultRedisPrefix {
		t.Errorf("Prefix = %q, want default", cfg.Prefix)
	}

	t.Setenv("DEEPRESEARCH_REDIS_DB", "two")
	if cfg := RedisConfigFromEnv(); cfg.DB != 0 {
		t.Errorf("DB = %d, want fallback 0 for unparseable value", cfg.DB)
	}
}
