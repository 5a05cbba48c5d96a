// Package events publishes lifecycle events to Kafka or to the log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events as JSON, keyed by owner so one owner's events
// stay ordered on a partition.
type Publisher struct {
	writer messageWriter
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher builds a hash-balanced writer for topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}, nil
}

// message is the wire form of an event.
type message struct {
	Type       string    `json:"type"`
	OwnerID    string    `json:"ownerId"`
	EntityID   string    `json:"entityId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (p *Publisher) Publish(ctx context.Context, e ports.Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(e ports.Event) (kafka.Message, error) {
	value, err := json.Marshal(message{
		Type:       e.Type,
		OwnerID:    e.OwnerID,
		EntityID:   e.EntityID,
		OccurredAt: e.OccurredAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(e.OwnerID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}
