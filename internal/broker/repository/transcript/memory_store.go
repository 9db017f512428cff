package transcript

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore backs local runs and tests when no object storage is
// configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, callID string, transcript []byte) error {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return ErrTranscriptNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[callID] = append([]byte(nil), transcript...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, callID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[strings.TrimSpace(callID)]
	if !ok {
		return nil, ErrTranscriptNotFound
	}
	return append([]byte(nil), data...), nil
}
