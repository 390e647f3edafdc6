// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/domain/service"
	"z-story-flow-api/pkg/errors"
	"z-story-flow-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

var (
	_ service.StepPublisher = (*Producer)(nil)
	_ service.StepPublisher = NoopPublisher{}
)

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, stream Stream, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	if stream == "" {
		stream = StreamStorySteps
	}
	return &Producer{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		metrics.StreamPublishedTotal.WithLabelValues(string(stream), "error").Inc()
		return "", errors.ErrMessaging.WithError(err)
	}

	metrics.StreamPublishedTotal.WithLabelValues(string(stream), "ok").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishStep 发布步骤事件
func (p *Producer) PublishStep(ctx context.Context, ev *entity.StepEvent) error {
	msg, err := NewMessage(uuid.NewString(), MessageTypeStoryStep, ev.SessionID, ev)
	if err != nil {
		return err
	}
	msg.SetMetadata("step", string(ev.Step))
	msg.SetMetadata("outcome", string(ev.Outcome))

	_, err = p.Publish(ctx, p.stream, msg)
	return err
}

// NoopPublisher 未启用事件流时使用
type NoopPublisher struct{}

func (NoopPublisher) PublishStep(context.Context, *entity.StepEvent) error { return nil }
