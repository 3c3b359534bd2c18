package store

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded in-process [Store]. It is intended for tests
// and single-process embedding; it provides the same MarkUsed atomicity as
// the persistent backends but obviously no durability.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	sessions map[string][]string
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*Record),
		sessions: make(map[string][]string),
	}
}

// Create inserts a copy of rec, so later caller mutations do not leak into
// the store.
func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.TokenID]; ok {
		return ErrConflict
	}

	cp := *rec
	s.records[rec.TokenID] = &cp
	s.sessions[rec.SessionID] = append(s.sessions[rec.SessionID], rec.TokenID)
	return nil
}

// Get returns a copy of the record for tokenID.
func (s *MemoryStore) Get(_ context.Context, tokenID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *rec
	return &cp, nil
}

// MarkUsed performs the conditional consume under the store lock.
func (s *MemoryStore) MarkUsed(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return ErrNotFound
	}
	if rec.Used || rec.Invalidated {
		return ErrAlreadyConsumed
	}

	rec.Used = true
	return nil
}

// InvalidateSession marks every record in the session as invalidated.
func (s *MemoryStore) InvalidateSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tokenID := range s.sessions[sessionID] {
		if rec, ok := s.records[tokenID]; ok {
			rec.Invalidated = true
		}
	}
	return nil
}

// DeleteExpiredBefore removes records expiring strictly before cutoff.
func (s *MemoryStore) DeleteExpiredBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for tokenID, rec := range s.records {
		if rec.ExpiresAt < cutoff {
			delete(s.records, tokenID)
			s.removeFromSessionLocked(rec.SessionID, tokenID)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports how many records the store currently holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) removeFromSessionLocked(sessionID, tokenID string) {
	ids := s.sessions[sessionID]
	for i, id := range ids {
		if id == tokenID {
			s.sessions[sessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.sessions[sessionID]) == 0 {
		delete(s.sessions, sessionID)
	}
}

var _ Store = (*MemoryStore)(nil)
