package inheritance

import (
	"context"
	"slices"
	"sync"

	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	next  id.PlanID
	plans map[id.PlanID]*Plan
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{plans: make(map[id.PlanID]*Plan)}
}

func clonePlan(p *Plan) *Plan {
	cp := *p
	cp.ParcelIDs = slices.Clone(p.ParcelIDs)
	cp.Heirs = slices.Clone(p.Heirs)
	cp.Milestones = slices.Clone(p.Milestones)
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, p *Plan) (id.PlanID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Mirrors the postgres store's partial unique index on in-force plans.
	for _, existing := range s.plans {
		if existing.Owner == p.Owner && !existing.Status.Terminal() {
			return 0, sentinel.ErrConflict
		}
	}
	s.next++
	cp := clonePlan(p)
	cp.ID = s.next
	s.plans[cp.ID] = cp
	return cp.ID, nil
}

func (s *InMemoryStore) Get(_ context.Context, planID id.PlanID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePlan(p), nil
}

func (s *InMemoryStore) Update(_ context.Context, p *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.plans[p.ID] = clonePlan(p)
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.UserID) ([]*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Plan
	for _, p := range s.plans {
		if p.Owner == owner {
			out = append(out, clonePlan(p))
		}
	}
	return out, nil
}

func (s *InMemoryStore) OwnerHasPlanInForce(_ context.Context, owner id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.Owner == owner && !p.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ParcelInPlanInForce(_ context.Context, parcelID id.ParcelID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.Status.Terminal() {
			continue
		}
		if slices.Contains(p.ParcelIDs, parcelID) {
			return true, nil
		}
	}
	return false, nil
}
