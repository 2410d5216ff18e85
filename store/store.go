package store

import (
	"context"

	"maintflow/domain"

	"github.com/fundwit/go-commons/types"
)

// RecordStore persists workflow entities. ConditionalUpdate applies a patch only while the
// entity is still in the expected state and fails with bizerror.ErrConcurrentModification otherwise.
type RecordStore interface {
	Create(ctx context.Context, entity *domain.Entity, log domain.TransitionLog) error
	Get(ctx context.Context, id types.ID) (*domain.Entity, error)
	ConditionalUpdate(ctx context.Context, id types.ID, expected domain.State, patch *domain.EntityPatch) (*domain.Entity, error)
	Query(ctx context.Context, query domain.EntityQuery) ([]domain.Entity, error)
	History(ctx context.Context, id types.ID) ([]domain.TransitionLog, error)
}
