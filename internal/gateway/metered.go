package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/store"
)

// MeteredGateway decorates a Gateway with Prometheus instrumentation on
// the handle path. Admin operations pass through unmeasured.
type MeteredGateway struct {
	gateway  Gateway
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMeteredGateway(g Gateway, reg prometheus.Registerer) (*MeteredGateway, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_total",
		Help: "Total number of events handled.",
	}, []string{"event_type", "event_version", "source", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "event_handling_duration_seconds",
		Help: "Histogram of event handling durations.",
	}, []string{"step"})

	if err := reg.Register(events); err != nil {
		return nil, err
	}
	if err := reg.Register(duration); err != nil {
		return nil, err
	}
	return &MeteredGateway{gateway: g, events: events, duration: duration}, nil
}

func (m *MeteredGateway) Handle(ctx context.Context, event *model.Event) error {
	timer := prometheus.NewTimer(m.duration.WithLabelValues("handle"))
	err := m.gateway.Handle(ctx, event)
	timer.ObserveDuration()

	version := "unknown"
	if event.EventVersion != nil {
		version = *event.EventVersion
	}
	source := "unknown"
	if event.Origin != nil {
		source = *event.Origin
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.events.WithLabelValues(event.EventType, version, source, result).Inc()
	return err
}

func (m *MeteredGateway) AddRoutingRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	return m.gateway.AddRoutingRule(ctx, rule)
}

func (m *MeteredGateway) GetRoutingRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	return m.gateway.GetRoutingRules(ctx)
}

func (m *MeteredGateway) UpdateRoutingRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	return m.gateway.UpdateRoutingRule(ctx, id, rule)
}

func (m *MeteredGateway) DeleteRoutingRule(ctx context.Context, id uuid.UUID) error {
	return m.gateway.DeleteRoutingRule(ctx, id)
}

func (m *MeteredGateway) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	return m.gateway.AddTopicValidation(ctx, v)
}

func (m *MeteredGateway) GetTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	return m.gateway.GetTopicValidations(ctx)
}

func (m *MeteredGateway) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	return m.gateway.DeleteTopicValidation(ctx, id)
}

func (m *MeteredGateway) GetStoredEvent(ctx context.Context, id uuid.UUID) (*store.StoredEvent, error) {
	return m.gateway.GetStoredEvent(ctx, id)
}

func (m *MeteredGateway) GetStoredEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]store.StoredEvent, error) {
	return m.gateway.GetStoredEventsByType(ctx, eventType, limit, offset)
}

func (m *MeteredGateway) GetStoredEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]store.StoredEvent, error) {
	return m.gateway.GetStoredEventsByRouting(ctx, routingID, limit, offset)
}

func (m *MeteredGateway) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return m.gateway.GetSampleEvents(ctx, limit, offset)
}
