package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

// InMemoryStorage serves a fixed snapshot of rules and validations loaded
// at startup. It is read only: every mutation and event operation returns
// ErrUnsupported. Useful for local runs and tests that need routing
// without a database.
type InMemoryStorage struct {
	rules       []model.TopicRoutingRule
	validations map[model.Topic][]model.TopicValidationConfig
}

type memorySnapshot struct {
	RoutingRules     []model.TopicRoutingRule                       `json:"routing_rules"`
	TopicValidations map[model.Topic][]model.TopicValidationConfig `json:"topic_validations"`
}

// NewInMemoryStorage returns an empty snapshot store.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{validations: map[model.Topic][]model.TopicValidationConfig{}}
}

// NewInMemoryStorageFromJSON builds a snapshot store from a JSON document
// with "routing_rules" and "topic_validations" keys.
func NewInMemoryStorageFromJSON(doc []byte) (*InMemoryStorage, error) {
	var snap memorySnapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, serializationErr(err)
	}
	s := &InMemoryStorage{rules: snap.RoutingRules, validations: snap.TopicValidations}
	if s.validations == nil {
		s.validations = map[model.Topic][]model.TopicValidationConfig{}
	}
	sortRules(s.rules)
	return s, nil
}

// WithRules replaces the rule snapshot and returns the store.
func (s *InMemoryStorage) WithRules(rules []model.TopicRoutingRule) *InMemoryStorage {
	s.rules = append([]model.TopicRoutingRule(nil), rules...)
	sortRules(s.rules)
	return s
}

// WithTopicValidations replaces the validation snapshot and returns the store.
func (s *InMemoryStorage) WithTopicValidations(validations map[model.Topic][]model.TopicValidationConfig) *InMemoryStorage {
	s.validations = validations
	return s
}

func (s *InMemoryStorage) AddRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error) {
	for i := range s.rules {
		if s.rules[i].ID == id {
			rule := s.rules[i]
			return &rule, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStorage) GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	return append([]model.TopicRoutingRule(nil), s.rules...), nil
}

func (s *InMemoryStorage) UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	out := make(map[model.Topic][]model.TopicValidationConfig, len(s.validations))
	for topic, configs := range s.validations {
		out[topic] = append([]model.TopicValidationConfig(nil), configs...)
	}
	return out, nil
}

func (s *InMemoryStorage) GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error) {
	return schemasForTopic(s.validations, topic), nil
}

func (s *InMemoryStorage) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error {
	return ErrUnsupported
}

func (s *InMemoryStorage) GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error) {
	return nil, ErrUnsupported
}

func (s *InMemoryStorage) GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error) {
	return nil, ErrUnsupported
}

func (s *InMemoryStorage) GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error) {
	return nil, ErrUnsupported
}

func (s *InMemoryStorage) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return nil, 0, ErrUnsupported
}

// sortRules orders rules ascending by Order, breaking ties by id so the
// result is deterministic.
func sortRules(rules []model.TopicRoutingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Order != rules[j].Order {
			return rules[i].Order < rules[j].Order
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}
