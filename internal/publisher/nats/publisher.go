// Package nats publishes events as NATS messages with envelope headers.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/JakeFAU/cnii-sentinel/internal/publisher"
)

type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Publisher writes to subjects named after event topics.
type Publisher struct {
	nc conn
}

// Connect dials url and returns a Publisher that owns the connection.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("cnii-sentinel"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Publisher{nc: nc}, nil
}

// New wraps an existing connection.
func New(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Publish sends payload on subject topic and flushes so delivery errors
// surface to the caller. The returned id is the routing key, when present.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p == nil || p.nc == nil {
		return "", errors.New("nats publisher is not configured")
	}
	msg, err := publisher.Encode(topic, payload)
	if err != nil {
		return "", err
	}
	out := nats.NewMsg(topic)
	out.Data = msg.Data
	for k, v := range msg.Headers {
		out.Header.Set(k, v)
	}
	if err := p.nc.PublishMsg(out); err != nil {
		return "", fmt.Errorf("publish %s: %w", topic, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return "", fmt.Errorf("flush %s: %w", topic, err)
	}
	return msg.Key, nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
