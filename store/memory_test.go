package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testRecord(tokenID, sessionID string) *Record {
	now := time.Now().UTC().Unix()
	return &Record{
		TokenID:   tokenID,
		SessionID: sessionID,
		Principal: "alice",
		CreatedAt: now,
		ExpiresAt: now + 3600,
	}
}

func TestMemoryCreateGetRoundtrip(t *testing.T) {
	s := NewMemoryStore()

	rec := testRecord("t1", "s1")
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := s.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SessionID != "s1" || got.Principal != "alice" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Used || got.Invalidated {
		t.Fatal("fresh record must be active")
	}

	// Mutating the returned copy must not leak into the store.
	got.Used = true
	again, err := s.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if again.Used {
		t.Fatal("store handed out a shared pointer")
	}
}

func TestMemoryCreateConflict(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Create(context.Background(), testRecord("t1", "s1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(context.Background(), testRecord("t1", "s2")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryMarkUsedStates(t *testing.T) {
	s := NewMemoryStore()

	if err := s.MarkUsed(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Create(context.Background(), testRecord("t1", "s1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.MarkUsed(context.Background(), "t1"); err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if err := s.MarkUsed(context.Background(), "t1"); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}

	if err := s.Create(context.Background(), testRecord("t2", "s1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.InvalidateSession(context.Background(), "s1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if err := s.MarkUsed(context.Background(), "t2"); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed for invalidated record, got %v", err)
	}
}

func TestMemoryMarkUsedSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Create(context.Background(), testRecord("t1", "s1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- s.MarkUsed(context.Background(), "t1")
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrAlreadyConsumed) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemoryInvalidateSessionScoped(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Create(context.Background(), testRecord("t1", "s1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(context.Background(), testRecord("t2", "s2")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := s.InvalidateSession(context.Background(), "s1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	r1, _ := s.Get(context.Background(), "t1")
	r2, _ := s.Get(context.Background(), "t2")
	if !r1.Invalidated {
		t.Fatal("session s1 record must be invalidated")
	}
	if r2.Invalidated {
		t.Fatal("session s2 record must be untouched")
	}

	// Unknown sessions are a no-op.
	if err := s.InvalidateSession(context.Background(), "nope"); err != nil {
		t.Fatalf("invalidate of unknown session failed: %v", err)
	}
}

func TestMemoryDeleteExpiredBefore(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC().Unix()

	old := testRecord("t1", "s1")
	old.ExpiresAt = now - 100
	if err := s.Create(context.Background(), old); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Create(context.Background(), testRecord("t2", "s2")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	deleted, err := s.DeleteExpiredBefore(context.Background(), now)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	if _, err := s.Get(context.Background(), "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected t1 gone, got %v", err)
	}
	if _, err := s.Get(context.Background(), "t2"); err != nil {
		t.Fatalf("t2 must survive: %v", err)
	}
}

func TestRecordActive(t *testing.T) {
	now := time.Now().UTC().Unix()
	rec := testRecord("t1", "s1")

	if !rec.Active(now) {
		t.Fatal("fresh record must be active")
	}
	rec.Used = true
	if rec.Active(now) {
		t.Fatal("used record must not be active")
	}
	rec.Used = false
	rec.Invalidated = true
	if rec.Active(now) {
		t.Fatal("invalidated record must not be active")
	}
	rec.Invalidated = false
	rec.ExpiresAt = now
	if rec.Active(now) {
		t.Fatal("record expiring now must not be active")
	}
}
