// cmd/retention-service/store.go
package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ufukkilic-eva/cancellation/internal/cache"
)

// SessionStore persists funnel sessions between user events
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// redisSessionStore keeps sessions in Redis with a TTL, so abandoned
// funnels expire on their own.
type redisSessionStore struct {
	cache *cache.Client
	ttl   time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(c *cache.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{cache: c, ttl: ttl}
}

func sessionKey(id string) string {
	return "retention:session:" + id
}

func (s *redisSessionStore) Save(ctx context.Context, sess *Session) error {
	return s.cache.Set(ctx, sessionKey(sess.ID), sess, s.ttl)
}

func (s *redisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.cache.Get(ctx, sessionKey(id), &sess); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, sessionKey(id))
}

// memorySessionStore is the limited-mode fallback when Redis is not
// reachable at startup.
type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemorySessionStore creates an in-process session store
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[string]Session)}
}

func (s *memorySessionStore) Save(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memorySessionStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := sess
	return &out, nil
}

func (s *memorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
