package service

import (
	"context"
	"testing"
	"time"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/pkg/serverutils"
	"ai-insights-be/pkg/blob"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(db *memDB, rows []dataset.Row, columns []string) uuid.UUID {
	id := uuid.New()
	db.sessions[id] = entity.ChatSession{
		Id:             id,
		Title:          defaultSessionTitle,
		Columns:        columns,
		RawData:        rows,
		Summary:        dataset.Summarize(rows, columns),
		CurrentVersion: 1,
		CreatedAt:      time.Now(),
	}
	return id
}

func TestVersionService_PersistsNextVersion(t *testing.T) {
	db := newMemDB()
	blobs := blob.NewFileStore(t.TempDir())
	pub := &recordingPublisher{}
	svc := NewVersionService(memFactory{db}, blobs, pub, logger.NewNop())

	id := seedSession(db, []dataset.Row{{"Revenue": 1.0}, {"Revenue": nil}}, []string{"Revenue"})
	cleaned := []dataset.Row{{"Revenue": 1.0}}

	v, err := svc.PersistVersion(context.Background(), id.String(), cleaned, []string{"Revenue"}, "remove_nulls")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, 1, v.RowCount)
	assert.Equal(t, id.String()+"/v2.json", v.BlobRef)
	assert.Equal(t, 1, v.Summary.RowCount)

	snap, err := blobs.Read(context.Background(), v.BlobRef)
	require.NoError(t, err)
	assert.Equal(t, "remove_nulls", snap.Operation)
	assert.Len(t, snap.Rows, 1)

	session := db.sessions[id]
	assert.Equal(t, 2, session.CurrentVersion)
	assert.Len(t, session.RawData, 1)
	assert.NotNil(t, session.UpdatedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.DatasetVersionCreated, pub.events[0].EventType())
	assert.Equal(t, id.String(), events.SessionID(pub.events[0]))
}

func TestVersionService_GivesUpAfterRepeatedConflicts(t *testing.T) {
	db := newMemDB()
	blobs := blob.NewFileStore(t.TempDir())
	svc := NewVersionService(memFactory{db}, blobs, nil, logger.NewNop())

	id := seedSession(db, []dataset.Row{{"A": 1.0}}, []string{"A"})
	// A row for version 2 exists while the session still points at 1.
	db.versions = append(db.versions, entity.DatasetVersion{Id: uuid.New(), ChatSessionId: id, Version: 2})

	_, err := svc.PersistVersion(context.Background(), id.String(), []dataset.Row{}, []string{"A"}, "delete_rows")
	require.ErrorIs(t, err, errVersionConflict)

	_, err = blobs.Read(context.Background(), blob.Ref(id.String(), 2))
	assert.ErrorIs(t, err, blob.ErrNotFound, "orphan blob must be removed")
	assert.Equal(t, 1, db.sessions[id].CurrentVersion)
}

func TestVersionService_UnknownSession(t *testing.T) {
	svc := NewVersionService(memFactory{newMemDB()}, blob.NewFileStore(t.TempDir()), nil, logger.NewNop())

	_, err := svc.PersistVersion(context.Background(), uuid.NewString(), nil, nil, "normalize")
	var notFound *serverutils.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = svc.PersistVersion(context.Background(), "not-a-uuid", nil, nil, "normalize")
	assert.Error(t, err)
}
