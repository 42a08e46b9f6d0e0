package service

import (
	"context"
	"fmt"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/mapper"
	"ai-insights-be/internal/repository/specification"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/pkg/rag"
	"ai-insights-be/pkg/rag/vector"

	"github.com/google/uuid"
)

// chunkStore keeps the retriever's embedded chunks in dataset_chunks.
type chunkStore struct {
	uowFactory unitofwork.RepositoryFactory
	mapper     *mapper.DatasetMapper
}

var _ rag.ChunkStore = &chunkStore{}

func NewChunkStore(uowFactory unitofwork.RepositoryFactory) rag.ChunkStore {
	return &chunkStore{uowFactory: uowFactory, mapper: mapper.NewDatasetMapper()}
}

func (s *chunkStore) Load(ctx context.Context, sessionID string) ([]vector.Chunk, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	stored, err := uow.DatasetChunkRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: id},
		specification.OrderBy{Field: "chunk_index", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	chunks := make([]vector.Chunk, 0, len(stored))
	for _, c := range stored {
		chunks = append(chunks, s.mapper.ChunkToVector(c))
	}
	return chunks, nil
}

// Save replaces whatever the session had stored.
func (s *chunkStore) Save(ctx context.Context, sessionID string, chunks []vector.Chunk) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.DatasetChunkRepository().DeleteByChatSessionId(ctx, id); err != nil {
		return err
	}
	if len(chunks) > 0 {
		rows := make([]*entity.DatasetChunk, 0, len(chunks))
		for i, c := range chunks {
			rows = append(rows, s.mapper.ChunkFromVector(id, i, c))
		}
		if err := uow.DatasetChunkRepository().CreateBulk(ctx, rows); err != nil {
			return err
		}
	}
	return uow.Commit()
}

func (s *chunkStore) Delete(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.DatasetChunkRepository().DeleteByChatSessionId(ctx, id)
}
