package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// PublisherSink forwards every event to a message bus topic.
type PublisherSink struct {
	publisher sentinel.Publisher
	topic     string
}

// NewPublisherSink publishes events to topic through p.
func NewPublisherSink(p sentinel.Publisher, topic string) *PublisherSink {
	return &PublisherSink{publisher: p, topic: topic}
}

// Consume publishes the batch in order. All failures are joined.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
			errs = append(errs, fmt.Errorf("publish %s for %s: %w", evt.Stage, evt.SweepID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements progress.Sink. The publisher is owned by the caller.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
