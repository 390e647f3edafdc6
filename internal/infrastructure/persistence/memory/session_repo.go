package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/pkg/errors"
)

var (
	_ repository.StorySessionRepository = (*SessionRepository)(nil)
	_ repository.Sweeper                = (*SessionRepository)(nil)
)

type sessionEntry struct {
	meta  entity.StorySession
	store *StateStore
}

// SessionRepository 内存会话仓储
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionRepository 创建内存会话仓储，ttl<=0 表示永不过期
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *SessionRepository) Create(_ context.Context) (*entity.StorySession, error) {
	s := entity.NewStorySession(uuid.NewString())

	r.mu.Lock()
	r.sessions[s.ID] = &sessionEntry{meta: *s, store: NewStateStore()}
	r.mu.Unlock()

	return s, nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (*entity.StorySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok || e.meta.Expired(r.now(), r.ttl) {
		return nil, errors.ErrSessionNotFound
	}
	meta := e.meta
	return &meta, nil
}

func (r *SessionRepository) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}
	e.meta.UpdatedAt = r.now()
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return errors.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Store 会话不存在时返回一个游离的空存储，写入不会被保留
func (r *SessionRepository) Store(id string) repository.StateStore {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.sessions[id]; ok {
		return e.store
	}
	return NewStateStore()
}

func (r *SessionRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var n int64
	for _, e := range r.sessions {
		if !e.meta.Expired(now, r.ttl) {
			n++
		}
	}
	return n, nil
}

// Sweep 删除空闲超时的会话，返回删除数量
func (r *SessionRepository) Sweep(_ context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.meta.Expired(now, r.ttl) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
