package follower

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and single-node dry runs.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	order    []string
	master   string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]Account)}
}

func (s *Memory) ListAccounts(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.accounts[id])
	}
	return out, nil
}

func (s *Memory) ListActiveFollowers(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Account
	for _, id := range s.order {
		acc := s.accounts[id]
		if id == s.master || !acc.Active() {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (s *Memory) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (s *Memory) MasterAccountID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master, nil
}

// Add upserts an account, preserving insertion order for listings.
func (s *Memory) Add(acc Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.ID]; !ok {
		s.order = append(s.order, acc.ID)
	}
	s.accounts[acc.ID] = acc
}

// SetMaster records the master account designation.
func (s *Memory) SetMaster(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = id
}
