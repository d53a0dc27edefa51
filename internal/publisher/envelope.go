// Package publisher holds the wire envelope shared by the event bus
// backends in its subpackages.
package publisher

import (
	"encoding/json"
	"fmt"
)

// Header names attached to every published message.
const (
	HeaderReportID  = "x-report-id"
	HeaderEventType = "x-event-type"
)

// Keyed payloads carry a routing key, the report or sweep id.
type Keyed interface {
	PublishKey() string
}

// Typed payloads name their own event type. Others use the topic.
type Typed interface {
	EventType() string
}

// Message is a payload ready for a broker.
type Message struct {
	Topic   string
	Key     string
	Data    []byte
	Headers map[string]string
}

// Encode marshals payload to JSON and derives key and headers from it.
func Encode(topic string, payload any) (Message, error) {
	if topic == "" {
		return Message{}, fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		Topic:   topic,
		Data:    data,
		Headers: map[string]string{HeaderEventType: topic},
	}
	if k, ok := payload.(Keyed); ok {
		msg.Key = k.PublishKey()
		msg.Headers[HeaderReportID] = msg.Key
	}
	if t, ok := payload.(Typed); ok && t.EventType() != "" {
		msg.Headers[HeaderEventType] = t.EventType()
	}
	return msg, nil
}
