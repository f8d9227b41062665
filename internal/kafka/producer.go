package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

// Position lifecycle event types
const (
	EventPositionOpened  = "POSITION_OPENED"
	EventPositionUpdated = "POSITION_UPDATED"
	EventPositionClosed  = "POSITION_CLOSED"
	EventPositionRolled  = "POSITION_ROLLED"
)

// PositionEvent is the message published on every position mutation
type PositionEvent struct {
	EventType string           `json:"event_type"`
	Ticker    string           `json:"ticker"`
	Position  *models.Position `json:"position,omitempty"`
	Successor *models.Position `json:"successor,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Producer handles publishing position events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishPositionOpened publishes a position opened event
func (p *Producer) PublishPositionOpened(ctx context.Context, pos *models.Position) error {
	return p.publish(ctx, PositionEvent{
		EventType: EventPositionOpened,
		Ticker:    pos.Ticker,
		Position:  pos,
		Timestamp: time.Now(),
	})
}

// PublishPositionUpdated publishes a position updated event
func (p *Producer) PublishPositionUpdated(ctx context.Context, pos *models.Position) error {
	return p.publish(ctx, PositionEvent{
		EventType: EventPositionUpdated,
		Ticker:    pos.Ticker,
		Position:  pos,
		Timestamp: time.Now(),
	})
}

// PublishPositionClosed publishes a position closed event
func (p *Producer) PublishPositionClosed(ctx context.Context, pos *models.Position) error {
	return p.publish(ctx, PositionEvent{
		EventType: EventPositionClosed,
		Ticker:    pos.Ticker,
		Position:  pos,
		Timestamp: time.Now(),
	})
}

// PublishPositionRolled publishes a roll event carrying both halves
func (p *Producer) PublishPositionRolled(ctx context.Context, closed, opened *models.Position) error {
	return p.publish(ctx, PositionEvent{
		EventType: EventPositionRolled,
		Ticker:    closed.Ticker,
		Position:  closed,
		Successor: opened,
		Timestamp: time.Now(),
	})
}

func (p *Producer) publish(ctx context.Context, event PositionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Ticker),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
