package service

import (
	"context"
	"sort"
	"sync"

	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/repository/contract"
	"ai-insights-be/internal/repository/specification"
	"ai-insights-be/internal/repository/unitofwork"
	"ai-insights-be/pkg/ai/pipeline"
	"ai-insights-be/pkg/events"

	"github.com/google/uuid"
)

// memDB backs the in-memory unit of work. Transactions are not isolated.
type memDB struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]entity.ChatSession
	messages []entity.ChatMessage
	versions []entity.DatasetVersion
	chunks   []entity.DatasetChunk
}

func newMemDB() *memDB {
	return &memDB{sessions: make(map[uuid.UUID]entity.ChatSession)}
}

type memFactory struct{ db *memDB }

func (f memFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUoW{db: f.db}
}

type memUoW struct{ db *memDB }

func (u *memUoW) Begin(ctx context.Context) error { return nil }
func (u *memUoW) Commit() error                   { return nil }
func (u *memUoW) Rollback() error                 { return nil }

func (u *memUoW) ChatSessionRepository() contract.ChatSessionRepository {
	return memSessions{u.db}
}
func (u *memUoW) ChatMessageRepository() contract.ChatMessageRepository {
	return memMessages{u.db}
}
func (u *memUoW) DatasetVersionRepository() contract.DatasetVersionRepository {
	return memVersions{u.db}
}
func (u *memUoW) DatasetChunkRepository() contract.DatasetChunkRepository {
	return memChunks{u.db}
}

// query is the subset of specifications the fakes understand.
type query struct {
	id, sessionID *uuid.UUID
	order         *specification.OrderBy
	limit         int
}

func parse(specs []specification.Specification) query {
	var q query
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id := v.ID
			q.id = &id
		case specification.ByChatSessionID:
			id := v.ChatSessionID
			q.sessionID = &id
		case specification.OrderBy:
			o := v
			q.order = &o
		case specification.Pagination:
			q.limit = v.Limit
		}
	}
	return q
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

type memSessions struct{ db *memDB }

func (r memSessions) Create(ctx context.Context, s *entity.ChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sessions[s.Id]; ok {
		return contract.ErrDuplicate
	}
	r.db.sessions[s.Id] = *s
	return nil
}

func (r memSessions) Update(ctx context.Context, s *entity.ChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions[s.Id] = *s
	return nil
}

func (r memSessions) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}

func (r memSessions) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memSessions) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := parse(specs)
	var out []*entity.ChatSession
	for id, s := range r.db.sessions {
		if q.id != nil && *q.id != id {
			continue
		}
		c := s
		out = append(out, &c)
	}
	return out, nil
}

func (r memSessions) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

type memMessages struct{ db *memDB }

func (r memMessages) Create(ctx context.Context, m *entity.ChatMessage) error {
	return r.CreateBulk(ctx, []*entity.ChatMessage{m})
}

func (r memMessages) CreateBulk(ctx context.Context, ms []*entity.ChatMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range ms {
		r.db.messages = append(r.db.messages, *m)
	}
	return nil
}

func (r memMessages) DeleteByChatSessionId(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.messages[:0]
	for _, m := range r.db.messages {
		if m.ChatSessionId != id {
			kept = append(kept, m)
		}
	}
	r.db.messages = kept
	return nil
}

func (r memMessages) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := parse(specs)
	var out []*entity.ChatMessage
	for _, m := range r.db.messages {
		if q.sessionID != nil && *q.sessionID != m.ChatSessionId {
			continue
		}
		c := m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.order != nil && q.order.Desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return limit(out, q.limit), nil
}

func (r memMessages) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

type memVersions struct{ db *memDB }

func (r memVersions) Create(ctx context.Context, v *entity.DatasetVersion) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.versions {
		if existing.ChatSessionId == v.ChatSessionId && existing.Version == v.Version {
			return contract.ErrDuplicate
		}
	}
	r.db.versions = append(r.db.versions, *v)
	return nil
}

func (r memVersions) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DatasetVersion, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memVersions) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := parse(specs)
	var out []*entity.DatasetVersion
	for _, v := range r.db.versions {
		if q.sessionID != nil && *q.sessionID != v.ChatSessionId {
			continue
		}
		c := v
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return limit(out, q.limit), nil
}

func (r memVersions) DeleteByChatSessionId(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.versions[:0]
	for _, v := range r.db.versions {
		if v.ChatSessionId != id {
			kept = append(kept, v)
		}
	}
	r.db.versions = kept
	return nil
}

type memChunks struct{ db *memDB }

func (r memChunks) CreateBulk(ctx context.Context, cs []*entity.DatasetChunk) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range cs {
		r.db.chunks = append(r.db.chunks, *c)
	}
	return nil
}

func (r memChunks) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DatasetChunk, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := parse(specs)
	var out []*entity.DatasetChunk
	for _, c := range r.db.chunks {
		if q.sessionID != nil && *q.sessionID != c.ChatSessionId {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (r memChunks) DeleteByChatSessionId(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.chunks[:0]
	for _, c := range r.db.chunks {
		if c.ChatSessionId != id {
			kept = append(kept, c)
		}
	}
	r.db.chunks = kept
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type recordingEvictor struct {
	mu      sync.Mutex
	evicted []string
}

func (e *recordingEvictor) Evict(ctx context.Context, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, sessionID)
}

func (e *recordingEvictor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.evicted...)
}

// processorFunc adapts a function to QueryProcessor.
type processorFunc func(ctx context.Context, q pipeline.Query) *pipeline.QueryResult

func (f processorFunc) ProcessQuery(ctx context.Context, q pipeline.Query) *pipeline.QueryResult {
	return f(ctx, q)
}
