package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/pkg/errors"
)

var _ repository.StateStore = (*StateStore)(nil)

// StateStore 基于 Hash 的字段存储，每个字段为 JSON 编码的 Field
type StateStore struct {
	rdb     *redis.Client
	key     string
	metaKey string
	ttl     time.Duration
}

func (s *StateStore) Get(ctx context.Context, key entity.FieldKey) (entity.Field, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.state.Get",
		trace.WithAttributes(attribute.String("redis.key", s.key), attribute.String("story.field", string(key))))
	defer span.End()

	raw, err := s.rdb.HGet(ctx, s.key, string(key)).Bytes()
	if IsNil(err) {
		return entity.Field{State: entity.FieldStateUnset}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return entity.Field{}, false, errors.ErrCache.WithError(err)
	}

	var f entity.Field
	if err := json.Unmarshal(raw, &f); err != nil {
		span.RecordError(err)
		return entity.Field{}, false, errors.ErrCache.WithError(err)
	}
	return f, true, nil
}

// Set 写入字段并刷新会话 TTL
func (s *StateStore) Set(ctx context.Context, key entity.FieldKey, field entity.Field) error {
	ctx, span := tracer.Start(ctx, "redis.state.Set",
		trace.WithAttributes(attribute.String("redis.key", s.key), attribute.String("story.field", string(key))))
	defer span.End()

	data, err := json.Marshal(field)
	if err != nil {
		span.RecordError(err)
		return errors.ErrCache.WithError(err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key, string(key), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
		pipe.Expire(ctx, s.metaKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return errors.ErrCache.WithError(err)
	}
	return nil
}

func (s *StateStore) Has(ctx context.Context, key entity.FieldKey) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.state.Has",
		trace.WithAttributes(attribute.String("redis.key", s.key)))
	defer span.End()

	ok, err := s.rdb.HExists(ctx, s.key, string(key)).Result()
	if err != nil {
		span.RecordError(err)
		return false, errors.ErrCache.WithError(err)
	}
	return ok, nil
}

func (s *StateStore) Delete(ctx context.Context, key entity.FieldKey) error {
	ctx, span := tracer.Start(ctx, "redis.state.Delete",
		trace.WithAttributes(attribute.String("redis.key", s.key), attribute.String("story.field", string(key))))
	defer span.End()

	if err := s.rdb.HDel(ctx, s.key, string(key)).Err(); err != nil {
		span.RecordError(err)
		return errors.ErrCache.WithError(err)
	}
	return nil
}

func (s *StateStore) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.state.Clear",
		trace.WithAttributes(attribute.String("redis.key", s.key)))
	defer span.End()

	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		span.RecordError(err)
		return errors.ErrCache.WithError(err)
	}
	return nil
}

func (s *StateStore) Snapshot(ctx context.Context) (entity.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "redis.state.Snapshot",
		trace.WithAttributes(attribute.String("redis.key", s.key)))
	defer span.End()

	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		span.RecordError(err)
		return nil, errors.ErrCache.WithError(err)
	}

	snap := make(entity.Snapshot, len(all))
	for k, raw := range all {
		var f entity.Field
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			span.RecordError(err)
			return nil, errors.ErrCache.WithError(err)
		}
		snap[entity.FieldKey(k)] = f
	}
	span.SetAttributes(attribute.Int("story.field_count", len(snap)))
	return snap, nil
}
