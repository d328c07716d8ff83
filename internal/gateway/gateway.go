// Package gateway contains the event handling core: route, validate,
// publish, and archive a deterministic sample of traffic in the
// background.
package gateway

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
	"github.com/agnostech/event-gateway/internal/publisher"
	"github.com/agnostech/event-gateway/internal/router"
	"github.com/agnostech/event-gateway/internal/store"
)

// SchemaInvalidError means the event data failed a topic schema; the
// boundary maps it to 400.
type SchemaInvalidError struct {
	Message string
}

func (e *SchemaInvalidError) Error() string {
	return e.Message
}

// NoRouteError means no routing rule matched; the boundary maps it to 406.
type NoRouteError struct {
	EventID uuid.UUID
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no topic to route event %s", e.EventID)
}

// InternalError wraps storage and publisher failures; details are logged,
// not returned to clients.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Gateway is the application core behind the HTTP surface.
type Gateway interface {
	Handle(ctx context.Context, event *model.Event) error

	AddRoutingRule(ctx context.Context, rule *model.TopicRoutingRule) error
	GetRoutingRules(ctx context.Context) ([]model.TopicRoutingRule, error)
	UpdateRoutingRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error
	DeleteRoutingRule(ctx context.Context, id uuid.UUID) error

	AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error
	GetTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error)
	DeleteTopicValidation(ctx context.Context, id uuid.UUID) error

	GetStoredEvent(ctx context.Context, id uuid.UUID) (*store.StoredEvent, error)
	GetStoredEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]store.StoredEvent, error)
	GetStoredEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]store.StoredEvent, error)
	GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error)
}

// Config controls event archiving. Threshold is a percentage in [0, 100].
type Config struct {
	SamplingEnabled   bool
	SamplingThreshold float64
}

// EventGateway owns one publisher and one storage.
type EventGateway struct {
	publisher         publisher.Publisher
	store             store.Storage
	samplingEnabled   bool
	samplingThreshold float64
}

func New(pub publisher.Publisher, st store.Storage, cfg Config) *EventGateway {
	return &EventGateway{
		publisher:         pub,
		store:             st,
		samplingEnabled:   cfg.SamplingEnabled,
		samplingThreshold: cfg.SamplingThreshold,
	}
}

// unknownTopic is archived as the destination when no rule matched.
const unknownTopic = model.Topic("unknown")

// Handle routes the event, validates its data against the destination
// topic's schemas, and publishes it. At every decision point a sampled
// copy is archived in the background; archiving never affects the
// response.
func (g *EventGateway) Handle(ctx context.Context, event *model.Event) error {
	rules, err := g.store.GetAllRules(ctx)
	if err != nil {
		return &InternalError{Err: err}
	}

	rule := router.Route(rules, event)
	if rule == nil {
		g.archiveInBackground(ctx, event, nil, unknownTopic, strptr("No topic to route event"))
		return &NoRouteError{EventID: event.ID}
	}

	schemas, err := g.store.GetValidationsForTopic(ctx, rule.Topic)
	if err != nil {
		return &InternalError{Err: err}
	}

	if doc, ok := event.Data.JSON(); ok {
		logger.Debug("validating event data", "event_id", event.ID, "topic", string(rule.Topic))
		for i := range schemas {
			schema := &schemas[i]
			if !schema.AppliesTo(event.EventType, event.EventVersion) {
				continue
			}
			violations := schema.Schema.JSON.Validate(doc)
			if len(violations) == 0 {
				continue
			}
			details := formatViolations(violations)
			reason := fmt.Sprintf("Schema validation failed for '%s': %s", schema.Name, details)
			g.archiveInBackground(ctx, event, &rule.ID, rule.Topic, &reason)
			return &SchemaInvalidError{
				Message: fmt.Sprintf("data of event %s does not match schema '%s': %s", event.ID, schema.Name, details),
			}
		}
	}

	if err := g.publisher.PublishOne(ctx, rule.Topic, event); err != nil {
		reason := fmt.Sprintf("Failed to publish event: %v", err)
		g.archiveInBackground(ctx, event, &rule.ID, rule.Topic, &reason)
		return &InternalError{Err: err}
	}

	g.archiveInBackground(ctx, event, &rule.ID, rule.Topic, nil)
	return nil
}

func (g *EventGateway) AddRoutingRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	return internalErr(g.store.AddRule(ctx, rule))
}

func (g *EventGateway) GetRoutingRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	rules, err := g.store.GetAllRules(ctx)
	if err != nil {
		return nil, &InternalError{Err: err}
	}
	return rules, nil
}

func (g *EventGateway) UpdateRoutingRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	return internalErr(g.store.UpdateRule(ctx, id, rule))
}

func (g *EventGateway) DeleteRoutingRule(ctx context.Context, id uuid.UUID) error {
	return internalErr(g.store.DeleteRule(ctx, id))
}

func (g *EventGateway) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	return internalErr(g.store.AddTopicValidation(ctx, v))
}

func (g *EventGateway) GetTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	validations, err := g.store.GetAllTopicValidations(ctx)
	if err != nil {
		return nil, &InternalError{Err: err}
	}
	return validations, nil
}

func (g *EventGateway) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	return internalErr(g.store.DeleteTopicValidation(ctx, id))
}

// Stored-event reads keep the storage error untouched so the boundary
// can distinguish a missing row from a backend failure.

func (g *EventGateway) GetStoredEvent(ctx context.Context, id uuid.UUID) (*store.StoredEvent, error) {
	return g.store.GetEvent(ctx, id)
}

func (g *EventGateway) GetStoredEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]store.StoredEvent, error) {
	return g.store.GetEventsByType(ctx, eventType, limit, offset)
}

func (g *EventGateway) GetStoredEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]store.StoredEvent, error) {
	return g.store.GetEventsByRouting(ctx, routingID, limit, offset)
}

func (g *EventGateway) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return g.store.GetSampleEvents(ctx, limit, offset)
}

// shouldStoreEvent is a deterministic sampler keyed on the event id: the
// wrapping sum of the 16 id bytes scaled against the threshold
// percentage. The same id always samples the same way.
func (g *EventGateway) shouldStoreEvent(event *model.Event) bool {
	if !g.samplingEnabled {
		return false
	}
	var sum uint32
	for _, b := range event.ID {
		sum += uint32(b)
	}
	return float64(sum)/float64(math.MaxUint32) <= g.samplingThreshold/100.0
}

const (
	archiveMaxAttempts  = 3
	archiveInitialDelay = 100 * time.Millisecond
	archiveMaxDelay     = 5000 * time.Millisecond
)

// archiveInBackground stores a sampled event on a detached goroutine.
// The goroutine outlives the request; cancellation of the request
// context must not abort a write already decided on.
func (g *EventGateway) archiveInBackground(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic model.Topic, failureReason *string) {
	if !g.shouldStoreEvent(event) {
		return
	}
	bg := context.WithoutCancel(ctx)
	go g.archiveWithRetry(bg, event, routingID, destinationTopic, failureReason)
}

func (g *EventGateway) archiveWithRetry(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic model.Topic, failureReason *string) {
	delay := archiveInitialDelay
	jitter := time.Duration(binary.BigEndian.Uint64(event.ID[8:])%100) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= archiveMaxAttempts; attempt++ {
		lastErr = g.store.StoreEvent(ctx, event, routingID, &destinationTopic, failureReason)
		if lastErr == nil {
			return
		}
		if attempt == archiveMaxAttempts {
			break
		}
		time.Sleep(delay)
		delay = delay*2 + jitter
		if delay > archiveMaxDelay {
			delay = archiveMaxDelay
		}
	}
	logger.Error("dropping event after failed archive attempts",
		"event_id", event.ID, "attempts", archiveMaxAttempts, "error", lastErr)
}

func formatViolations(violations []model.SchemaViolation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.InstancePath != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", v.InstancePath, v.Message))
		} else {
			parts = append(parts, v.Message)
		}
	}
	return strings.Join(parts, "; ")
}

func internalErr(err error) error {
	if err != nil {
		return &InternalError{Err: err}
	}
	return nil
}

func strptr(s string) *string {
	return &s
}
