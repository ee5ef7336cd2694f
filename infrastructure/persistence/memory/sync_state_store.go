package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
)

// SyncStateStore keeps sync baselines in memory.
type SyncStateStore struct {
	mu     sync.RWMutex
	states map[string]ports.SyncState
}

var _ ports.SyncStateStore = (*SyncStateStore)(nil)

func NewSyncStateStore() *SyncStateStore {
	return &SyncStateStore{states: make(map[string]ports.SyncState)}
}

func (s *SyncStateStore) Get(ctx context.Context, userID string) (*ports.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return &ports.SyncState{UserID: userID, Baseline: map[string]string{}}, nil
	}
	state.Baseline = maps.Clone(state.Baseline)
	if state.Baseline == nil {
		state.Baseline = map[string]string{}
	}
	return &state, nil
}

func (s *SyncStateStore) Save(ctx context.Context, state *ports.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	cp.Baseline = maps.Clone(state.Baseline)
	s.states[state.UserID] = cp
	return nil
}
