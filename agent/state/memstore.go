package state

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps conversation state in-process. Used for tests and local
// runs without a checkpoint database; states are deep-copied on the way in
// and out so callers never share mutable history slices.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, threadID string) (*ConversationState, error) {
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	s.mu.RLock()
	raw, ok := s.threads[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	var st ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *MemoryStore) Save(_ context.Context, st *ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	if err := st.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.threads[st.ThreadID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.threads, threadID)
	s.mu.Unlock()
	return nil
}
