package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/pkg/errors"
)

var _ repository.StorySessionRepository = (*SessionRepository)(nil)

// SessionRepository Redis 会话仓储，过期依赖键 TTL
type SessionRepository struct {
	client *Client
	keys   keys
	ttl    time.Duration
}

// NewSessionRepository 创建 Redis 会话仓储
func NewSessionRepository(client *Client, prefix string, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		keys:   newKeys(prefix),
		ttl:    ttl,
	}
}

func (r *SessionRepository) Create(ctx context.Context) (*entity.StorySession, error) {
	s := entity.NewStorySession(uuid.NewString())

	ctx, span := tracer.Start(ctx, "redis.session.Create",
		trace.WithAttributes(attribute.String("story.session_id", s.ID)))
	defer span.End()

	if err := r.save(ctx, s); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entity.StorySession, error) {
	ctx, span := tracer.Start(ctx, "redis.session.Get",
		trace.WithAttributes(attribute.String("story.session_id", id)))
	defer span.End()

	raw, err := r.client.rdb.Get(ctx, r.keys.meta(id)).Bytes()
	if IsNil(err) {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, errors.ErrCache.WithError(err)
	}

	var s entity.StorySession
	if err := json.Unmarshal(raw, &s); err != nil {
		span.RecordError(err)
		return nil, errors.ErrCache.WithError(err)
	}
	return &s, nil
}

// Touch 刷新活跃时间及元数据、字段的 TTL
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "redis.session.Touch",
		trace.WithAttributes(attribute.String("story.session_id", id)))
	defer span.End()

	s.UpdatedAt = time.Now()
	if err := r.save(ctx, s); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "redis.session.Delete",
		trace.WithAttributes(attribute.String("story.session_id", id)))
	defer span.End()

	n, err := r.client.rdb.Del(ctx, r.keys.meta(id), r.keys.fields(id)).Result()
	if err != nil {
		span.RecordError(err)
		return errors.ErrCache.WithError(err)
	}
	if n == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Store(id string) repository.StateStore {
	return &StateStore{
		rdb:     r.client.rdb,
		key:     r.keys.fields(id),
		metaKey: r.keys.meta(id),
		ttl:     r.ttl,
	}
}

// Count 通过 SCAN 统计存活会话
func (r *SessionRepository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "redis.session.Count")
	defer span.End()

	var n int64
	iter := r.client.rdb.Scan(ctx, 0, r.keys.metaPattern(), 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return 0, errors.ErrCache.WithError(err)
	}
	span.SetAttributes(attribute.Int64("story.session_count", n))
	return n, nil
}

func (r *SessionRepository) save(ctx context.Context, s *entity.StorySession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.ErrCache.WithError(err)
	}

	pipe := r.client.rdb.TxPipeline()
	pipe.Set(ctx, r.keys.meta(s.ID), data, r.ttl)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keys.fields(s.ID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.ErrCache.WithError(err)
	}
	return nil
}
