package rag

import (
	"time"

	"ai-insights-be/pkg/rag/vector"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSessionTTL      = 1 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// SessionStore holds one vector store per chat session with TTL eviction.
// Concurrent builds for the same session collapse into one.
type SessionStore struct {
	cache *cache.Cache
	group singleflight.Group
}

func NewSessionStore(ttl, cleanup time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &SessionStore{cache: cache.New(ttl, cleanup)}
}

func (s *SessionStore) Get(sessionID string) (*vector.Store, bool) {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*vector.Store), true
	}
	return nil, false
}

// GetOrBuild returns the cached store or runs build once and caches its result.
func (s *SessionStore) GetOrBuild(sessionID string, build func() (*vector.Store, error)) (*vector.Store, error) {
	if st, ok := s.Get(sessionID); ok {
		return st, nil
	}
	v, err, _ := s.group.Do(sessionID, func() (interface{}, error) {
		if st, ok := s.Get(sessionID); ok {
			return st, nil
		}
		st, err := build()
		if err != nil {
			return nil, err
		}
		s.cache.Set(sessionID, st, cache.DefaultExpiration)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vector.Store), nil
}

func (s *SessionStore) Evict(sessionID string) {
	s.cache.Delete(sessionID)
}

func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}
