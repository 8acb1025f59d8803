package escrow

import (
	"context"
	"sync"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	next    id.EscrowID
	escrows map[id.EscrowID]*Escrow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{escrows: make(map[id.EscrowID]*Escrow)}
}

func (s *InMemoryStore) Create(_ context.Context, e *Escrow) (id.EscrowID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	cp := *e
	cp.ID = s.next
	s.escrows[cp.ID] = &cp
	return cp.ID, nil
}

func (s *InMemoryStore) Get(_ context.Context, escrowID id.EscrowID) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, e *Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escrows[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *e
	s.escrows[e.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByParty(_ context.Context, party id.UserID) ([]*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Escrow
	for _, e := range s.escrows {
		if e.Buyer == party || e.Seller == party {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
