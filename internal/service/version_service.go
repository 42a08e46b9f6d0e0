package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/pkg/serverutils"
	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/pkg/ai/handler"
	"ai-insights-be/pkg/blob"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/events"

	"github.com/google/uuid"
)

const versionConflictRetries = 3

var errVersionConflict = errors.New("dataset version conflict")

// IVersionService stores dataset snapshots. It is the persister the DataOps
// handler writes mutations through.
type IVersionService interface {
	handler.VersionPersister
	GetVersions(ctx context.Context, sessionId uuid.UUID) ([]*entity.DatasetVersion, error)
}

type versionService struct {
	uowFactory unitofwork.RepositoryFactory
	blobs      blob.Store
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewVersionService(uowFactory unitofwork.RepositoryFactory, blobs blob.Store, publisher events.Publisher, log logger.ILogger) IVersionService {
	return &versionService{
		uowFactory: uowFactory,
		blobs:      blobs,
		publisher:  publisher,
		logger:     log,
	}
}

// PersistVersion writes rows as the session's next version, makes it the
// session's current dataset and announces it.
func (s *versionService) PersistVersion(ctx context.Context, sessionID string, rows []dataset.Row, columns []string, operation string) (*handler.DatasetVersion, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	var version *handler.DatasetVersion
	for attempt := 1; attempt <= versionConflictRetries; attempt++ {
		version, err = s.persistOnce(ctx, id, rows, columns, operation)
		if !errors.Is(err, errVersionConflict) {
			break
		}
		s.logger.Warn("CHAT", "Dataset version taken, retrying", map[string]interface{}{
			"session_id": sessionID,
			"attempt":    attempt,
		})
	}
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := events.NewDatasetVersionCreated(sessionID, version.Version, version.RowCount, version.BlobRef, operation)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("CHAT", "Failed to publish dataset version", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	s.logger.Info("CHAT", "Dataset version stored", map[string]interface{}{
		"session_id": sessionID,
		"version":    version.Version,
		"rows":       version.RowCount,
		"operation":  operation,
	})
	return version, nil
}

func (s *versionService) persistOnce(ctx context.Context, id uuid.UUID, rows []dataset.Row, columns []string, operation string) (*handler.DatasetVersion, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("chat session not found")
	}

	if len(columns) == 0 {
		columns = dataset.ColumnOrder(rows)
	}
	now := time.Now()
	next := session.CurrentVersion + 1

	ref, err := s.blobs.Write(ctx, blob.Snapshot{
		SessionID: id.String(),
		Version:   next,
		Operation: operation,
		Columns:   columns,
		Rows:      rows,
		CreatedAt: now,
	})
	if errors.Is(err, os.ErrExist) {
		return nil, errVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("write dataset blob: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.blobs.Remove(context.WithoutCancel(ctx), ref)
		}
	}()

	err = uow.DatasetVersionRepository().Create(ctx, &entity.DatasetVersion{
		Id:            uuid.New(),
		ChatSessionId: id,
		Version:       next,
		RowCount:      len(rows),
		BlobRef:       ref,
		Operation:     operation,
		CreatedAt:     now,
	})
	if errors.Is(err, contract.ErrDuplicate) {
		return nil, errVersionConflict
	}
	if err != nil {
		return nil, err
	}

	summary := dataset.Summarize(rows, columns)
	session.RawData = rows
	session.Columns = columns
	session.Summary = summary
	session.CurrentVersion = next
	session.UpdatedAt = &now
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return &handler.DatasetVersion{
		Version:   next,
		BlobRef:   ref,
		RowCount:  len(rows),
		Operation: operation,
		Summary:   summary,
	}, nil
}

func (s *versionService) GetVersions(ctx context.Context, sessionId uuid.UUID) ([]*entity.DatasetVersion, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.DatasetVersionRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "version", Desc: false},
	)
}
