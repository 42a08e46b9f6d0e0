package contract

import (
	"context"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DatasetChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.DatasetChunk) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetChunk, error)
	DeleteByChatSessionId(ctx context.Context, chatSessionId uuid.UUID) error
}
