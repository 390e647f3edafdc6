// Package memory 提供单进程内存会话存储
package memory

import (
	"context"
	"sync"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
)

var _ repository.StateStore = (*StateStore)(nil)

// StateStore 内存字段存储，所有操作均不会失败
type StateStore struct {
	mu     sync.RWMutex
	fields map[entity.FieldKey]entity.Field
}

// NewStateStore 创建空的字段存储
func NewStateStore() *StateStore {
	return &StateStore{fields: make(map[entity.FieldKey]entity.Field)}
}

func (s *StateStore) Get(_ context.Context, key entity.FieldKey) (entity.Field, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fields[key]
	if !ok {
		return entity.Field{State: entity.FieldStateUnset}, false, nil
	}
	return cloneField(f), true, nil
}

func (s *StateStore) Set(_ context.Context, key entity.FieldKey, field entity.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields[key] = cloneField(field)
	return nil
}

func (s *StateStore) Has(_ context.Context, key entity.FieldKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.fields[key]
	return ok, nil
}

func (s *StateStore) Delete(_ context.Context, key entity.FieldKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fields, key)
	return nil
}

func (s *StateStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = make(map[entity.FieldKey]entity.Field)
	return nil
}

func (s *StateStore) Snapshot(_ context.Context) (entity.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(entity.Snapshot, len(s.fields))
	for k, f := range s.fields {
		snap[k] = cloneField(f)
	}
	return snap, nil
}

// cloneField 角色是指针，需要深拷贝避免快照被后续写入影响
func cloneField(f entity.Field) entity.Field {
	if f.Character != nil {
		c := *f.Character
		f.Character = &c
	}
	return f
}
