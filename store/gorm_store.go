package store

import (
	"context"
	"errors"

	"maintflow/bizerror"
	"maintflow/domain"
	"maintflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	otgorm "github.com/smacker/opentracing-gorm"
)

type GormStore struct {
	dataSource *persistence.DataSourceManager
}

func NewGormStore(ds *persistence.DataSourceManager) *GormStore {
	return &GormStore{dataSource: ds}
}

func (s *GormStore) Migrate() error {
	return s.dataSource.GormDB().AutoMigrate(&domain.Entity{}, &domain.ApprovalRecord{}, &domain.TransitionLog{}).Error
}

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return otgorm.SetSpanToGorm(ctx, s.dataSource.GormDB())
}

func unavailable(op string, err error) error {
	logrus.WithError(err).WithField("op", op).Error("record store failure")
	return &bizerror.ErrStoreUnavailable{Cause: err}
}

func (s *GormStore) Create(ctx context.Context, entity *domain.Entity, log domain.TransitionLog) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		for i := range entity.Approvals {
			entity.Approvals[i].EntityID = entity.ID
			if err := tx.Create(&entity.Approvals[i]).Error; err != nil {
				return err
			}
		}
		log.EntityID = entity.ID
		return tx.Create(&log).Error
	})
	if err != nil {
		return unavailable("create", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id types.ID) (*domain.Entity, error) {
	db := s.db(ctx)
	entity := domain.Entity{}
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, bizerror.ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	entity.Approvals = []domain.ApprovalRecord{}
	if err := db.Where("entity_id = ?", id).Order("id ASC").Find(&entity.Approvals).Error; err != nil {
		return nil, unavailable("get", err)
	}
	return &entity, nil
}

func (s *GormStore) ConditionalUpdate(ctx context.Context, id types.ID, expected domain.State, patch *domain.EntityPatch) (*domain.Entity, error) {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		changes := map[string]interface{}{"state": patch.State, "update_time": patch.UpdateTime}
		if patch.StartTime != nil {
			changes["start_time"] = *patch.StartTime
		}
		if patch.CompleteTime != nil {
			changes["complete_time"] = *patch.CompleteTime
		}
		q := tx.Model(&domain.Entity{}).Where("id = ? AND state = ?", id, expected).Updates(changes)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected != 1 {
			var count int
			if err := tx.Model(&domain.Entity{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return bizerror.ErrNotFound
			}
			return bizerror.ErrConcurrentModification
		}
		if patch.Approval != nil {
			approval := *patch.Approval
			approval.EntityID = id
			if err := tx.Create(&approval).Error; err != nil {
				return err
			}
		}
		log := patch.Log
		log.EntityID = id
		return tx.Create(&log).Error
	})
	if err != nil {
		if errors.Is(err, bizerror.ErrNotFound) || errors.Is(err, bizerror.ErrConcurrentModification) {
			return nil, err
		}
		return nil, unavailable("conditional-update", err)
	}
	return s.Get(ctx, id)
}

func (s *GormStore) Query(ctx context.Context, query domain.EntityQuery) ([]domain.Entity, error) {
	db := s.db(ctx)
	q := db.Model(&domain.Entity{})
	if query.Kind != "" {
		q = q.Where("kind = ?", query.Kind)
	}
	if query.State != "" {
		q = q.Where("state = ?", query.State)
	}
	entities := []domain.Entity{}
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, unavailable("query", err)
	}
	if len(entities) == 0 {
		return entities, nil
	}

	ids := make([]types.ID, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	approvals := []domain.ApprovalRecord{}
	if err := db.Where("entity_id IN (?)", ids).Order("id ASC").Find(&approvals).Error; err != nil {
		return nil, unavailable("query", err)
	}
	byEntity := map[types.ID][]domain.ApprovalRecord{}
	for _, a := range approvals {
		byEntity[a.EntityID] = append(byEntity[a.EntityID], a)
	}
	for i := range entities {
		entities[i].Approvals = byEntity[entities[i].ID]
		if entities[i].Approvals == nil {
			entities[i].Approvals = []domain.ApprovalRecord{}
		}
	}
	return entities, nil
}

func (s *GormStore) History(ctx context.Context, id types.ID) ([]domain.TransitionLog, error) {
	db := s.db(ctx)
	var count int
	if err := db.Model(&domain.Entity{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, unavailable("history", err)
	}
	if count == 0 {
		return nil, bizerror.ErrNotFound
	}
	logs := []domain.TransitionLog{}
	if err := db.Where("entity_id = ?", id).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, unavailable("history", err)
	}
	return logs, nil
}
