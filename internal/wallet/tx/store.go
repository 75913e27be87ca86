package tx

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore is a process local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[common.Hash]Outcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[common.Hash]Outcome)}
}

func (s *MemoryStore) Put(_ context.Context, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[outcome.Hash] = outcome
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hash common.Hash) (Outcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[hash]
	return outcome, ok, nil
}
