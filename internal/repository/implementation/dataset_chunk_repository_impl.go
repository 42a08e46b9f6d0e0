package implementation

import (
	"context"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/mapper"
	"ai-insights-be/internal/model"
	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const chunkInsertBatch = 100

type DatasetChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DatasetMapper
}

func NewDatasetChunkRepository(db *gorm.DB) contract.DatasetChunkRepository {
	return &DatasetChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDatasetMapper(),
	}
}

func (r *DatasetChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.DatasetChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]*model.DatasetChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ChunkToModel(c)
	}
	return r.db.WithContext(ctx).CreateInBatches(&models, chunkInsertBatch).Error
}

func (r *DatasetChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetChunk, error) {
	var models []*model.DatasetChunk
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DatasetChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChunkToEntity(m)
	}
	return entities, nil
}

func (r *DatasetChunkRepositoryImpl) DeleteByChatSessionId(ctx context.Context, chatSessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_session_id = ?", chatSessionId).Delete(&model.DatasetChunk{}).Error
}
