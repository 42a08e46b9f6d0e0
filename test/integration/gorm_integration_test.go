package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/model"
	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/pkg/database"
	"ai-insights-be/pkg/dataset"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err, "connect")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		t.Skipf("Skipping integration test: pgvector unavailable: %v", err)
	}
	require.NoError(t, db.AutoMigrate(
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.DatasetVersion{},
		&model.DatasetChunk{},
	))
	return db
}

func TestGormRepositories(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	factory := unitofwork.NewRepositoryFactory(db)

	rows := []dataset.Row{
		{"Month": "2024-01", "Revenue": 120.0},
		{"Month": "2024-02", "Revenue": 140.0},
	}
	columns := []string{"Month", "Revenue"}
	session := &entity.ChatSession{
		Id:             uuid.New(),
		Title:          "integration",
		Columns:        columns,
		RawData:        rows,
		Summary:        dataset.Summarize(rows, columns),
		CurrentVersion: 1,
		CreatedAt:      time.Now(),
	}

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
	t.Cleanup(func() {
		cleanup := factory.NewUnitOfWork(ctx)
		_ = cleanup.DatasetChunkRepository().DeleteByChatSessionId(ctx, session.Id)
		_ = cleanup.DatasetVersionRepository().DeleteByChatSessionId(ctx, session.Id)
		_ = cleanup.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id)
		_ = cleanup.ChatSessionRepository().Delete(ctx, session.Id)
	})

	t.Run("Session round trip", func(t *testing.T) {
		got, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: session.Id})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, columns, got.Columns)
		assert.Len(t, got.RawData, 2)
		assert.Equal(t, 2, got.Summary.RowCount)
	})

	t.Run("Duplicate version is rejected", func(t *testing.T) {
		v := func() *entity.DatasetVersion {
			return &entity.DatasetVersion{
				Id:            uuid.New(),
				ChatSessionId: session.Id,
				Version:       1,
				RowCount:      2,
				BlobRef:       session.Id.String() + "/v1.json",
				Operation:     "upload",
				CreatedAt:     time.Now(),
			}
		}
		require.NoError(t, uow.DatasetVersionRepository().Create(ctx, v()))
		err := uow.DatasetVersionRepository().Create(ctx, v())
		assert.ErrorIs(t, err, contract.ErrDuplicate)
	})

	t.Run("Messages come back in order", func(t *testing.T) {
		start := time.Now()
		msgs := []*entity.ChatMessage{
			{Id: uuid.New(), ChatSessionId: session.Id, Role: "user", Chat: "average Revenue?", CreatedAt: start},
			{Id: uuid.New(), ChatSessionId: session.Id, Role: "assistant", Chat: "130", Intent: "statistical", CreatedAt: start.Add(time.Millisecond)},
		}
		require.NoError(t, uow.ChatMessageRepository().CreateBulk(ctx, msgs))

		got, err := uow.ChatMessageRepository().FindAll(ctx,
			specification.ByChatSessionID{ChatSessionID: session.Id},
			specification.OrderBy{Field: "created_at"},
		)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "user", got[0].Role)
		assert.Equal(t, "statistical", got[1].Intent)
	})

	t.Run("Chunks with embeddings", func(t *testing.T) {
		chunks := []*entity.DatasetChunk{
			{Id: uuid.New(), ChatSessionId: session.Id, ChunkKey: "summary", ChunkType: "summary", Content: "2 rows", Embedding: []float32{0.1, 0.2, 0.3}, ChunkIndex: 0, CreatedAt: time.Now()},
			{Id: uuid.New(), ChatSessionId: session.Id, ChunkKey: "column:Revenue", ChunkType: "column", Content: "Revenue numeric", ChunkIndex: 1, CreatedAt: time.Now()},
		}
		require.NoError(t, uow.DatasetChunkRepository().CreateBulk(ctx, chunks))

		got, err := uow.DatasetChunkRepository().FindAll(ctx,
			specification.ByChatSessionID{ChatSessionID: session.Id},
			specification.OrderBy{Field: "chunk_index"},
		)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding, 1e-6)
		assert.Empty(t, got[1].Embedding)
	})

	t.Run("Transaction rollback discards writes", func(t *testing.T) {
		tx := factory.NewUnitOfWork(ctx)
		require.NoError(t, tx.Begin(ctx))
		require.NoError(t, tx.ChatMessageRepository().Create(ctx, &entity.ChatMessage{
			Id: uuid.New(), ChatSessionId: session.Id, Role: "user", Chat: "discarded", CreatedAt: time.Now(),
		}))
		require.NoError(t, tx.Rollback())

		count, err := uow.ChatMessageRepository().Count(ctx, specification.ByChatSessionID{ChatSessionID: session.Id})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}
