// Package publisher defines the outbound port for delivering events to a
// message broker, with no-op, Kafka, and MQTT implementations. Events are
// serialized to JSON for wire transport; publisher instances are shared
// and long-lived.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

// Publisher delivers one event to a destination topic.
type Publisher interface {
	PublishOne(ctx context.Context, topic model.Topic, event *model.Event) error
}

// Error is the single failure kind publishers report; broker-specific
// causes are flattened into the message.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "publisher error: " + e.Message
}

func errf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// NoOpPublisher serializes and logs the event without delivering it
// anywhere. Used for local development and tests.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishOne(ctx context.Context, topic model.Topic, event *model.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errf("serialize event: %v", err)
	}
	logger.Info("published event", "topic", string(topic), "event", string(raw))
	return nil
}
