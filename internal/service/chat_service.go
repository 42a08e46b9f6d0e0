package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-insights-be/internal/dto"
	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/mapper"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/pkg/serverutils"
	"ai-insights-be/internal/repository/specification"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/pkg/ai/pipeline"
	"ai-insights-be/pkg/blob"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/store"

	"github.com/google/uuid"
)

const (
	defaultSessionTitle = "Untitled dataset"
	initialOperation    = "upload"
	historyWindow       = 20
	titleMaxRunes       = 60
)

// QueryProcessor answers one question against a dataset.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, q pipeline.Query) *pipeline.QueryResult
}

type IChatService interface {
	CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionId uuid.UUID) (*dto.GetSessionResponse, error)
	GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	GetVersions(ctx context.Context, sessionId uuid.UUID) ([]*dto.DatasetVersionResponse, error)
	DeleteSession(ctx context.Context, sessionId uuid.UUID) error
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	processor  QueryProcessor
	versions   IVersionService
	blobs      blob.Store
	evictor    IndexEvictor
	dataOps    store.DataOpsStore
	mapper     *mapper.ChatMapper
	now        func() time.Time
	logger     logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	processor QueryProcessor,
	versions IVersionService,
	blobs blob.Store,
	evictor IndexEvictor,
	dataOps store.DataOpsStore,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		processor:  processor,
		versions:   versions,
		blobs:      blobs,
		evictor:    evictor,
		dataOps:    dataOps,
		mapper:     mapper.NewChatMapper(),
		now:        time.Now,
		logger:     log,
	}
}

// CreateSession stores the uploaded rows as version 1 of a new session.
func (cs *chatService) CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	columns := request.Columns
	if len(columns) == 0 {
		columns = dataset.ColumnOrder(request.Rows)
	}
	rows := dataset.CloneRows(request.Rows)
	dataset.FillMissing(rows, columns)
	summary := dataset.Summarize(rows, columns)

	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = defaultSessionTitle
	}

	now := cs.now()
	session := entity.ChatSession{
		Id:             uuid.New(),
		Title:          title,
		Columns:        columns,
		RawData:        rows,
		Summary:        summary,
		CurrentVersion: 1,
		CreatedAt:      now,
	}

	ref, err := cs.blobs.Write(ctx, blob.Snapshot{
		SessionID: session.Id.String(),
		Version:   1,
		Operation: initialOperation,
		Columns:   columns,
		Rows:      rows,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}
	if err := uow.DatasetVersionRepository().Create(ctx, &entity.DatasetVersion{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Version:       1,
		RowCount:      len(rows),
		BlobRef:       ref,
		Operation:     initialOperation,
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	cs.logger.Info("CHAT", "Session created", map[string]interface{}{
		"session_id": session.Id,
		"rows":       len(rows),
		"columns":    len(columns),
	})

	return &dto.CreateSessionResponse{Id: session.Id, Title: session.Title, Summary: summary}, nil
}

func (cs *chatService) findSession(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("chat session not found")
	}
	return session, nil
}

func (cs *chatService) GetSession(ctx context.Context, sessionId uuid.UUID) (*dto.GetSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := cs.findSession(ctx, uow, sessionId)
	if err != nil {
		return nil, err
	}

	return &dto.GetSessionResponse{
		Id:             session.Id,
		Title:          session.Title,
		Columns:        session.Columns,
		RowCount:       len(session.RawData),
		Summary:        session.Summary,
		CurrentVersion: session.CurrentVersion,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	}, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.findSession(ctx, uow, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.GetChatHistoryResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, &dto.GetChatHistoryResponse{
			Id:              msg.Id,
			Role:            msg.Role,
			Chat:            msg.Chat,
			Charts:          msg.Charts,
			Insights:        msg.Insights,
			Intent:          msg.Intent,
			Degraded:        msg.Degraded,
			DegradedReasons: msg.DegradedReasons,
			CreatedAt:       msg.CreatedAt,
		})
	}
	return resp, nil
}

// SendChat answers one question and appends both turns to the session.
func (cs *chatService) SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := cs.findSession(ctx, uow, request.ChatSessionId)
	if err != nil {
		return nil, err
	}

	recent, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: session.Id},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: historyWindow},
	)
	if err != nil {
		return nil, err
	}
	history := make([]chat.Message, len(recent))
	for i, msg := range recent {
		history[len(recent)-1-i] = cs.mapper.ChatMessageToHistory(msg)
	}

	question := strings.TrimSpace(request.Chat)
	started := cs.now()
	result := cs.processor.ProcessQuery(ctx, pipeline.Query{
		Question:  question,
		History:   history,
		Data:      session.RawData,
		Summary:   session.Summary,
		SessionID: session.Id.String(),
	})

	userMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          chat.RoleUser,
		Chat:          question,
		CreatedAt:     started,
	}
	replyAt := cs.now()
	if !replyAt.After(started) {
		replyAt = started.Add(time.Millisecond)
	}
	modelMessage := &entity.ChatMessage{
		Id:              uuid.New(),
		ChatSessionId:   session.Id,
		Role:            chat.RoleAssistant,
		Chat:            result.Answer,
		Charts:          result.Charts,
		Insights:        result.Insights,
		Intent:          string(result.Intent.Type),
		Degraded:        result.Degraded,
		DegradedReasons: result.DegradedReasons,
		CreatedAt:       replyAt,
	}

	if err := cs.saveTurn(ctx, session, len(recent) == 0, userMessage, modelMessage); err != nil {
		return nil, err
	}

	return cs.toSendResponse(session.Id, result, modelMessage.CreatedAt), nil
}

func (cs *chatService) saveTurn(ctx context.Context, session *entity.ChatSession, firstTurn bool, messages ...*entity.ChatMessage) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().CreateBulk(ctx, messages); err != nil {
		return err
	}

	if firstTurn && session.Title == defaultSessionTitle {
		// Re-read so a version written during this turn is not overwritten.
		current, err := cs.findSession(ctx, uow, session.Id)
		if err != nil {
			return err
		}
		now := cs.now()
		current.Title = titleFrom(messages[0].Chat)
		current.UpdatedAt = &now
		if err := uow.ChatSessionRepository().Update(ctx, current); err != nil {
			return err
		}
	}

	return uow.Commit()
}

func titleFrom(question string) string {
	q := strings.TrimSpace(question)
	if utf8.RuneCountInString(q) <= titleMaxRunes {
		return q
	}
	return string([]rune(q)[:titleMaxRunes]) + "..."
}

func (cs *chatService) toSendResponse(sessionId uuid.UUID, result *pipeline.QueryResult, at time.Time) *dto.SendChatResponse {
	resp := &dto.SendChatResponse{
		ChatSessionId:         sessionId,
		Answer:                result.Answer,
		Charts:                result.Charts,
		Insights:              result.Insights,
		Suggestions:           result.Suggestions,
		RequiresClarification: result.RequiresClarification,
		Error:                 result.Error,
		Intent:                result.Intent,
		Handler:               result.Handler,
		Degraded:              result.Degraded,
		DegradedReasons:       result.DegradedReasons,
		CreatedAt:             at,
	}
	if resp.Charts == nil {
		resp.Charts = []chart.Spec{}
	}
	if resp.Insights == nil {
		resp.Insights = []chart.Insight{}
	}
	if v := result.Dataset; v != nil {
		resp.Dataset = &dto.DatasetVersionInfo{
			Version:   v.Version,
			RowCount:  v.RowCount,
			BlobRef:   v.BlobRef,
			Operation: v.Operation,
			Summary:   v.Summary,
		}
	}
	return resp
}

func (cs *chatService) GetVersions(ctx context.Context, sessionId uuid.UUID) ([]*dto.DatasetVersionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.findSession(ctx, uow, sessionId); err != nil {
		return nil, err
	}

	versions, err := cs.versions.GetVersions(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.DatasetVersionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, &dto.DatasetVersionResponse{
			Version:   v.Version,
			RowCount:  v.RowCount,
			BlobRef:   v.BlobRef,
			Operation: v.Operation,
			CreatedAt: v.CreatedAt,
		})
	}
	return resp, nil
}

// DeleteSession removes the session with its messages, chunks and versions,
// then drops every cache keyed by it.
func (cs *chatService) DeleteSession(ctx context.Context, sessionId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := cs.findSession(ctx, uow, sessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.DatasetChunkRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.DatasetVersionRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	id := sessionId.String()
	if cs.evictor != nil {
		cs.evictor.Evict(ctx, id)
	}
	if cs.dataOps != nil {
		if err := cs.dataOps.Clear(ctx, id); err != nil {
			cs.logger.Warn("CHAT", "Failed to clear data operation context", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
		}
	}
	if err := cs.blobs.DeleteSession(ctx, id); err != nil {
		cs.logger.Warn("CHAT", "Failed to delete dataset blobs", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}

	cs.logger.Info("CHAT", "Session deleted", map[string]interface{}{"session_id": id})
	return nil
}
