// Package kafka publishes events to Kafka topics with segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/JakeFAU/cnii-sentinel/internal/publisher"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per event. The topic travels on each
// message so a single writer serves every event topic.
type Publisher struct {
	writer messageWriter
}

// New builds a producer for brokers.
func New(brokers []string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return &Publisher{writer: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}}, nil
}

// Publish writes payload keyed by its report or sweep id.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p == nil || p.writer == nil {
		return "", errors.New("kafka publisher is not configured")
	}
	msg, err := publisher.Encode(topic, payload)
	if err != nil {
		return "", err
	}
	if err := p.writer.WriteMessages(ctx, toMessage(msg)); err != nil {
		return "", fmt.Errorf("write %s: %w", topic, err)
	}
	return msg.Key, nil
}

func toMessage(msg publisher.Message) kafkago.Message {
	out := kafkago.Message{
		Topic: msg.Topic,
		Value: msg.Data,
	}
	if msg.Key != "" {
		out.Key = []byte(msg.Key)
	}
	for _, name := range []string{publisher.HeaderReportID, publisher.HeaderEventType} {
		if v, ok := msg.Headers[name]; ok {
			out.Headers = append(out.Headers, kafkago.Header{Key: name, Value: []byte(v)})
		}
	}
	return out
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
