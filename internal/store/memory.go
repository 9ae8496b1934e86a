package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stockleague/stockleague/pkg/models"
)

// MemoryStore is a thread-safe in-memory PortfolioStore.
type MemoryStore struct {
	mu    sync.RWMutex
	byUID map[string]models.Portfolio
}

var _ PortfolioStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUID: make(map[string]models.Portfolio)}
}

// FindByUsername returns the portfolio saved under a username.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byUID {
		if p.Username == username {
			cp := clonePortfolio(p)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Upsert saves a portfolio keyed on its UserID.
func (s *MemoryStore) Upsert(_ context.Context, p models.Portfolio) error {
	s.mu.Lock()
	s.byUID[p.UserID] = clonePortfolio(p)
	s.mu.Unlock()
	return nil
}

// List returns every saved portfolio in stable username order.
func (s *MemoryStore) List(_ context.Context) ([]models.Portfolio, error) {
	s.mu.RLock()
	out := make([]models.Portfolio, 0, len(s.byUID))
	for _, p := range s.byUID {
		out = append(out, clonePortfolio(p))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(context.Context) error { return nil }

// clonePortfolio copies a portfolio so callers can't mutate stored state.
func clonePortfolio(p models.Portfolio) models.Portfolio {
	cp := p
	cp.Positions = make([]models.Position, len(p.Positions))
	copy(cp.Positions, p.Positions)
	return cp
}
