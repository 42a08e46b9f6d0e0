package service

import (
	"context"
	"testing"
	"time"

	"ai-insights-be/internal/dto"
	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/pkg/serverutils"
	"ai-insights-be/internal/repository/memory"
	"ai-insights-be/pkg/ai/handler"
	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/ai/pipeline"
	"ai-insights-be/pkg/blob"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	db      *memDB
	blobs   *blob.FileStore
	evictor *recordingEvictor
	dataOps *memory.DataOpsRepository
	queries []pipeline.Query
	svc     *chatService
}

func newChatFixture(t *testing.T, answer func(q pipeline.Query) *pipeline.QueryResult) *chatFixture {
	f := &chatFixture{
		db:      newMemDB(),
		blobs:   blob.NewFileStore(t.TempDir()),
		evictor: &recordingEvictor{},
		dataOps: memory.NewDataOpsRepository(),
	}
	factory := memFactory{f.db}
	versions := NewVersionService(factory, f.blobs, nil, logger.NewNop())
	processor := processorFunc(func(ctx context.Context, q pipeline.Query) *pipeline.QueryResult {
		f.queries = append(f.queries, q)
		return answer(q)
	})
	f.svc = NewChatService(factory, processor, versions, f.blobs, f.evictor, f.dataOps, logger.NewNop()).(*chatService)
	return f
}

func salesRequest() *dto.CreateSessionRequest {
	return &dto.CreateSessionRequest{
		Rows: []dataset.Row{
			{"Month": "2024-01", "Revenue": 120.0},
			{"Month": "2024-02", "Revenue": 150.0},
			{"Month": "2024-03"},
		},
	}
}

func TestChatService_CreateSessionStoresVersionOne(t *testing.T) {
	f := newChatFixture(t, nil)

	res, err := f.svc.CreateSession(context.Background(), salesRequest())
	require.NoError(t, err)
	assert.Equal(t, defaultSessionTitle, res.Title)
	assert.Equal(t, 3, res.Summary.RowCount)
	assert.True(t, res.Summary.IsNumeric("Revenue"))

	session := f.db.sessions[res.Id]
	assert.Equal(t, []string{"Month", "Revenue"}, session.Columns)
	assert.Equal(t, 1, session.CurrentVersion)
	assert.Contains(t, session.RawData[2], "Revenue", "missing cells are filled")

	versions, err := f.svc.GetVersions(context.Background(), res.Id)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, initialOperation, versions[0].Operation)

	snap, err := f.blobs.Read(context.Background(), versions[0].BlobRef)
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 3)
}

func TestChatService_SendChatPersistsBothTurns(t *testing.T) {
	f := newChatFixture(t, func(q pipeline.Query) *pipeline.QueryResult {
		return &pipeline.QueryResult{
			Answer:          "Revenue averages 135.",
			Intent:          intent.Intent{Type: intent.TypeStatistical, Confidence: 0.9},
			Handler:         handler.NameStatistical,
			Degraded:        true,
			DegradedReasons: []string{pipeline.ReasonRAGFallback},
		}
	})
	ctx := context.Background()
	created, err := f.svc.CreateSession(ctx, salesRequest())
	require.NoError(t, err)

	res, err := f.svc.SendChat(ctx, &dto.SendChatRequest{ChatSessionId: created.Id, Chat: "  What is the average revenue?  "})
	require.NoError(t, err)
	assert.Equal(t, "Revenue averages 135.", res.Answer)
	assert.NotNil(t, res.Charts)
	assert.True(t, res.Degraded)

	require.Len(t, f.queries, 1)
	assert.Equal(t, "What is the average revenue?", f.queries[0].Question)
	assert.Equal(t, created.Id.String(), f.queries[0].SessionID)
	assert.Len(t, f.queries[0].Data, 3)
	assert.Empty(t, f.queries[0].History)

	history, err := f.svc.GetChatHistory(ctx, created.Id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.RoleUser, history[0].Role)
	assert.Equal(t, chat.RoleAssistant, history[1].Role)
	assert.Equal(t, "statistical", history[1].Intent)
	assert.Equal(t, []string{pipeline.ReasonRAGFallback}, history[1].DegradedReasons)

	assert.Equal(t, "What is the average revenue?", f.db.sessions[created.Id].Title)
}

func TestChatService_SendChatPassesHistoryOldestFirst(t *testing.T) {
	f := newChatFixture(t, func(q pipeline.Query) *pipeline.QueryResult {
		return &pipeline.QueryResult{Answer: "ok"}
	})
	ctx := context.Background()
	created, err := f.svc.CreateSession(ctx, salesRequest())
	require.NoError(t, err)

	base := time.Now()
	clock := 0
	f.svc.now = func() time.Time {
		clock++
		return base.Add(time.Duration(clock) * time.Second)
	}

	for _, q := range []string{"first", "second", "third"} {
		_, err := f.svc.SendChat(ctx, &dto.SendChatRequest{ChatSessionId: created.Id, Chat: q})
		require.NoError(t, err)
	}

	last := f.queries[2].History
	require.Len(t, last, 4)
	assert.Equal(t, "first", last[0].Content)
	assert.Equal(t, "second", last[2].Content)
	assert.Equal(t, chat.RoleAssistant, last[3].Role)
	assert.Equal(t, "first", f.db.sessions[created.Id].Title, "title is set once")
}

func TestChatService_MissingSession(t *testing.T) {
	f := newChatFixture(t, nil)
	var notFound *serverutils.NotFoundError

	_, err := f.svc.SendChat(context.Background(), &dto.SendChatRequest{ChatSessionId: uuid.New(), Chat: "hi"})
	assert.ErrorAs(t, err, &notFound)
	assert.Empty(t, f.queries)

	_, err = f.svc.GetSession(context.Background(), uuid.New())
	assert.ErrorAs(t, err, &notFound)
}

func TestChatService_DeleteSessionClearsEverything(t *testing.T) {
	f := newChatFixture(t, func(q pipeline.Query) *pipeline.QueryResult {
		return &pipeline.QueryResult{Answer: "ok"}
	})
	ctx := context.Background()
	created, err := f.svc.CreateSession(ctx, salesRequest())
	require.NoError(t, err)
	id := created.Id.String()

	_, err = f.svc.SendChat(ctx, &dto.SendChatRequest{ChatSessionId: created.Id, Chat: "hello"})
	require.NoError(t, err)
	f.db.chunks = append(f.db.chunks, entity.DatasetChunk{Id: uuid.New(), ChatSessionId: created.Id, Content: "c"})
	require.NoError(t, f.dataOps.SavePending(ctx, id, store.PendingOperation{Operation: "delete_column"}))

	require.NoError(t, f.svc.DeleteSession(ctx, created.Id))

	assert.Empty(t, f.db.sessions)
	assert.Empty(t, f.db.messages)
	assert.Empty(t, f.db.versions)
	assert.Empty(t, f.db.chunks)
	assert.Equal(t, []string{id}, f.evictor.calls())

	pending, err := f.dataOps.Pending(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, pending)

	_, err = f.blobs.Read(ctx, blob.Ref(id, 1))
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "short", titleFrom(" short "))
	long := "Which region had the highest revenue growth between the first and the last quarter?"
	got := titleFrom(long)
	assert.Len(t, []rune(got), titleMaxRunes+3)
}
