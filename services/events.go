package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/models"
	"go.uber.org/zap"
)

// EventType names a committed lifecycle change
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventQuotationCreated   EventType = "quotation.created"
	EventQuotationAccepted  EventType = "quotation.accepted"
	EventQuotationRejected  EventType = "quotation.rejected"
)

// OrderEvent is published after a lifecycle mutation commits
type OrderEvent struct {
	Type        EventType          `json:"type"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	ActorID     string             `json:"actor_id"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func newOrderEvent(eventType EventType, order *models.Order, actorID string) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}

// EventPublisher delivers order events to interested systems
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// eventPublishTimeout caps how long a request waits on the event sink
const eventPublishTimeout = 5 * time.Second

// publishBestEffort sends event and only logs a failure. The mutation it
// describes has already committed.
func publishBestEffort(ctx context.Context, publisher EventPublisher, event OrderEvent) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish order event",
			zap.String("event", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// KafkaEventPublisher writes events to a Kafka topic keyed by order id, so
// every event of one order lands on the same partition
type KafkaEventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaEventPublisher connects a synchronous producer to brokers
func NewKafkaEventPublisher(brokers []string, topic string) (*KafkaEventPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Net.DialTimeout = 5 * time.Second
	config.Net.ReadTimeout = 5 * time.Second
	config.Net.WriteTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start Sarama producer: %w", err)
	}
	return NewKafkaEventPublisherWithProducer(producer, topic), nil
}

// NewKafkaEventPublisherWithProducer wraps an existing producer
func NewKafkaEventPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// Publish sends event and waits for the broker acknowledgement or for ctx
// to end, whichever comes first. An abandoned send still completes in the
// background against the producer's own timeouts.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("order event not sent: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("order event to %s abandoned: %w", p.topic, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to send order event to %s: %w", p.topic, res.err)
		}
		logger.Debug("order event published",
			zap.String("event", string(event.Type)),
			zap.String("topic", p.topic),
			zap.Int32("partition", res.partition),
			zap.Int64("offset", res.offset))
		return nil
	}
}

// Close flushes and closes the producer
func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

// RecordingPublisher keeps events in memory for assertions
type RecordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	Err    error
}

// Publish records event and returns Err
func (r *RecordingPublisher) Publish(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }

// Events returns a copy of the recorded events
func (r *RecordingPublisher) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}

// Types returns the recorded event types in publish order
func (r *RecordingPublisher) Types() []EventType {
	events := r.Events()
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
