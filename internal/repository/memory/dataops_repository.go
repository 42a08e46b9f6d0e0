package memory

import (
	"context"
	"time"

	"ai-insights-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// DataOpsRepository is the single-process DataOps context store.
type DataOpsRepository struct {
	cache *cache.Cache
}

var _ store.DataOpsStore = &DataOpsRepository{}

func NewDataOpsRepository() *DataOpsRepository {
	// Entries carry their own TTL; expired items are purged every minute
	c := cache.New(store.LastFilterTTL, 1*time.Minute)
	return &DataOpsRepository{
		cache: c,
	}
}

func filterKey(sessionID string) string  { return "filter:" + sessionID }
func pendingKey(sessionID string) string { return "pending:" + sessionID }

func (r *DataOpsRepository) SaveLastFilter(ctx context.Context, sessionID string, f store.FilterContext) error {
	r.cache.Set(filterKey(sessionID), f, store.LastFilterTTL)
	return nil
}

func (r *DataOpsRepository) LastFilter(ctx context.Context, sessionID string) (*store.FilterContext, error) {
	if x, found := r.cache.Get(filterKey(sessionID)); found {
		f := x.(store.FilterContext)
		return &f, nil
	}
	return nil, nil
}

func (r *DataOpsRepository) SavePending(ctx context.Context, sessionID string, op store.PendingOperation) error {
	r.cache.Set(pendingKey(sessionID), op, store.PendingOperationTTL)
	return nil
}

func (r *DataOpsRepository) Pending(ctx context.Context, sessionID string) (*store.PendingOperation, error) {
	if x, found := r.cache.Get(pendingKey(sessionID)); found {
		op := x.(store.PendingOperation)
		return &op, nil
	}
	return nil, nil
}

func (r *DataOpsRepository) ClearPending(ctx context.Context, sessionID string) error {
	r.cache.Delete(pendingKey(sessionID))
	return nil
}

func (r *DataOpsRepository) Clear(ctx context.Context, sessionID string) error {
	r.cache.Delete(pendingKey(sessionID))
	r.cache.Delete(filterKey(sessionID))
	return nil
}
