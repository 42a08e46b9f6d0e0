package unitofwork

import (
	"context"

	"ai-insights-be/internal/repository/contract"
)

// RepositoryFactory hands out a fresh UnitOfWork per request or per attempt.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	DatasetVersionRepository() contract.DatasetVersionRepository
	DatasetChunkRepository() contract.DatasetChunkRepository
}
