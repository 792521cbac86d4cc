// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
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
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// VersionCreatedMessage 版本创建事件消息
type VersionCreatedMessage struct {
	DocumentID    string            `json:"document_id"`
	VersionNumber int               `json:"version_number"`
	IsSnapshot    bool              `json:"is_snapshot"`
	ChangeType    entity.ChangeType `json:"change_type"`
	AuthorID      string            `json:"author_id,omitempty"`
}

// VersionEventPublisher 版本事件发布器。
// 发布失败只记日志：事件流是下游通知通道，不回滚已提交的版本。
type VersionEventPublisher struct {
	producer *Producer
}

// NewVersionEventPublisher 创建版本事件发布器
func NewVersionEventPublisher(producer *Producer) *VersionEventPublisher {
	return &VersionEventPublisher{producer: producer}
}

// PublishVersionCreated 发布版本创建事件
func (p *VersionEventPublisher) PublishVersionCreated(ctx context.Context, v *entity.DocumentVersion) {
	payload := &VersionCreatedMessage{
		DocumentID:    v.DocumentID,
		VersionNumber: v.VersionNumber,
		IsSnapshot:    v.IsSnapshot,
		ChangeType:    v.ChangeType,
		AuthorID:      v.AuthorID,
	}

	msg, err := NewMessage(
		fmt.Sprintf("%s:%d", v.DocumentID, v.VersionNumber),
		"version_created", v.DocumentID, payload,
	)
	if err != nil {
		logger.Error(ctx, "failed to build version event", err,
			"document_id", v.DocumentID, "version", v.VersionNumber)
		return
	}
	msg.SetMetadata("change_type", string(v.ChangeType))

	if _, err := p.producer.Publish(ctx, StreamVersionEvents, msg); err != nil {
		logger.Error(ctx, "failed to publish version event", err,
			"document_id", v.DocumentID, "version", v.VersionNumber)
	}
}
