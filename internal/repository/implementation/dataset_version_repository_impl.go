package implementation

import (
	"context"
	"errors"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/mapper"
	"ai-insights-be/internal/model"
	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DatasetVersionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DatasetMapper
}

func NewDatasetVersionRepository(db *gorm.DB) contract.DatasetVersionRepository {
	return &DatasetVersionRepositoryImpl{
		db:     db,
		mapper: mapper.NewDatasetMapper(),
	}
}

func (r *DatasetVersionRepositoryImpl) Create(ctx context.Context, version *entity.DatasetVersion) error {
	m := r.mapper.VersionToModel(version)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translateError(err)
	}
	*version = *r.mapper.VersionToEntity(m)
	return nil
}

func (r *DatasetVersionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DatasetVersion, error) {
	var m model.DatasetVersion
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.VersionToEntity(&m), nil
}

func (r *DatasetVersionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetVersion, error) {
	var models []*model.DatasetVersion
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DatasetVersion, len(models))
	for i, m := range models {
		entities[i] = r.mapper.VersionToEntity(m)
	}
	return entities, nil
}

func (r *DatasetVersionRepositoryImpl) DeleteByChatSessionId(ctx context.Context, chatSessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", chatSessionId).Delete(&model.DatasetVersion{}).Error
}
