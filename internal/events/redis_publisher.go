package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamAdder is the subset of the redis client used to append stream entries.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher mirrors ticket events onto a capped Redis stream for
// downstream consumers.
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisPublisher builds a publisher writing to stream.
func NewRedisPublisher(client StreamAdder, stream string, maxLen int64, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Register subscribes the publisher to every ticket event.
func (p *RedisPublisher) Register(dispatcher Dispatcher) {
	dispatcher.Subscribe(EventTicketCreated, p.Handle)
	dispatcher.Subscribe(EventTicketStatusChanged, p.Handle)
}

// Handle appends event to the stream.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":  event.ID,
			"type":      string(event.Type),
			"ticket_id": event.TicketID,
			"source":    event.Source,
			"timestamp": event.Timestamp.Format(timeFormat),
			"payload":   string(payload),
		},
	}).Result()
	if err != nil {
		p.logger.Warn("failed to publish ticket event", zap.String("stream", p.stream), zap.String("ticket_id", event.TicketID), zap.Error(err))
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("published ticket event", zap.String("stream", p.stream), zap.String("entry_id", id))
	return nil
}

const timeFormat = "2006-01-02T15:04:05.000000Z07:00"
