package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"maintflow/bizerror"
	"maintflow/domain"

	"github.com/fundwit/go-commons/types"
)

// MemoryStore keeps records in process memory. It serves tests and single instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[types.ID]*domain.Entity
	logs     map[types.ID][]domain.TransitionLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: map[types.ID]*domain.Entity{},
		logs:     map[types.ID][]domain.TransitionLog{},
	}
}

func clone(e *domain.Entity) *domain.Entity {
	c := *e
	c.Approvals = append([]domain.ApprovalRecord{}, e.Approvals...)
	return &c
}

func (s *MemoryStore) Create(ctx context.Context, entity *domain.Entity, log domain.TransitionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return &bizerror.ErrStoreUnavailable{Cause: fmt.Errorf("duplicate entity id %s", entity.ID)}
	}
	for i := range entity.Approvals {
		entity.Approvals[i].EntityID = entity.ID
	}
	log.EntityID = entity.ID
	s.entities[entity.ID] = clone(entity)
	s.logs[entity.ID] = []domain.TransitionLog{log}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, bizerror.ErrNotFound
	}
	return clone(e), nil
}

func (s *MemoryStore) ConditionalUpdate(ctx context.Context, id types.ID, expected domain.State, patch *domain.EntityPatch) (*domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, bizerror.ErrNotFound
	}
	if e.State != expected {
		return nil, bizerror.ErrConcurrentModification
	}
	e.State = patch.State
	e.UpdateTime = patch.UpdateTime
	if patch.StartTime != nil {
		t := *patch.StartTime
		e.StartTime = &t
	}
	if patch.CompleteTime != nil {
		t := *patch.CompleteTime
		e.CompleteTime = &t
	}
	if patch.Approval != nil {
		approval := *patch.Approval
		approval.EntityID = id
		e.Approvals = append(e.Approvals, approval)
	}
	log := patch.Log
	log.EntityID = id
	s.logs[id] = append(s.logs[id], log)
	return clone(e), nil
}

func (s *MemoryStore) Query(ctx context.Context, query domain.EntityQuery) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Entity{}
	for _, e := range s.entities {
		if query.Kind != "" && e.Kind != query.Kind {
			continue
		}
		if query.State != "" && e.State != query.State {
			continue
		}
		out = append(out, *clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) History(ctx context.Context, id types.ID) ([]domain.TransitionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.entities[id]; !ok {
		return nil, bizerror.ErrNotFound
	}
	return append([]domain.TransitionLog{}, s.logs[id]...), nil
}
