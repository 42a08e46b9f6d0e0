package contract

import (
	"context"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DatasetVersionRepository interface {
	// Create returns ErrDuplicate when the session already has this version number.
	Create(ctx context.Context, version *entity.DatasetVersion) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DatasetVersion, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetVersion, error)
	DeleteByChatSessionId(ctx context.Context, chatSessionId uuid.UUID) error
}
