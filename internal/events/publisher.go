// Package events publishes ledger events to Redis streams.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meeter/meeter/internal/metrics"
	"github.com/meeter/meeter/internal/model"
)

const (
	// StreamKey is the Redis stream for delivery events.
	StreamKey = "stream:deliveries"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// DeliveryPayload is the compact event format written to the stream.
// The presented API key is deliberately left out.
type DeliveryPayload struct {
	ID          string `json:"id"`
	Item        string `json:"item"`
	Avatar      string `json:"avatar"`
	ProcessedBy string `json:"pb"`
	Timestamp   int64  `json:"t"` // Unix milliseconds
}

// PayloadFromDelivery converts a stored delivery into its stream form.
func PayloadFromDelivery(d *model.Delivery) DeliveryPayload {
	return DeliveryPayload{
		ID:          d.ID,
		Item:        d.Item,
		Avatar:      d.Avatar,
		ProcessedBy: d.ProcessedBy,
		Timestamp:   d.Timestamp.UnixMilli(),
	}
}

// Publisher enqueues delivery events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	stream  string
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a delivery event publisher. An empty stream uses StreamKey.
func NewPublisher(client *redis.Client, stream string, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if stream == "" {
		stream = StreamKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		stream:  stream,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Stream returns the stream the publisher writes to.
func (p *Publisher) Stream() string {
	return p.stream
}

// Publish adds a delivery event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, d *model.Delivery) (string, error) {
	data, err := json.Marshal(PayloadFromDelivery(d))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishDelivery publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishDelivery(d *model.Delivery) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, d)
		if err != nil {
			p.logger.Warn("failed to publish delivery event",
				"delivery_id", d.ID,
				"error", err,
			)
			p.metrics.IncDeliveryEventPublished("dropped")
			return
		}

		p.logger.Debug("delivery event published",
			"delivery_id", d.ID,
			"stream_id", streamID,
		)
		p.metrics.IncDeliveryEventPublished("success")
	}()
}
