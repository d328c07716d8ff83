// Package store defines the storage port for routing rules, topic
// validations, and archived events, plus its in-memory, file-tree,
// postgres, and cached-postgres implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

// ErrorKind classifies a storage failure uniformly across backends.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindIo
	KindSerialization
	KindDatabase
	KindPool
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "item not found"
	case KindIo:
		return "io error"
	case KindSerialization:
		return "serialization error"
	case KindDatabase:
		return "database error"
	case KindPool:
		return "connection pool error"
	}
	return "storage error"
}

// Error wraps an underlying failure with its taxonomy kind. errors.Is
// matches on kind, so callers can test against the exported sentinels.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks against the taxonomy.
var (
	ErrNotFound = &Error{Kind: KindNotFound}

	// ErrUnsupported is returned by backends that do not implement an
	// operation (the read-only in-memory variant, file-tree sampling).
	ErrUnsupported = &Error{Kind: KindOther, Err: errors.New("operation not supported")}
)

func ioErr(err error) error            { return &Error{Kind: KindIo, Err: err} }
func serializationErr(err error) error { return &Error{Kind: KindSerialization, Err: err} }
func databaseErr(err error) error      { return &Error{Kind: KindDatabase, Err: err} }
func poolErr(err error) error          { return &Error{Kind: KindPool, Err: err} }

func otherErr(format string, args ...any) error {
	return &Error{Kind: KindOther, Err: fmt.Errorf(format, args...)}
}

// StoredEvent is one archived event row: the event with the routing
// decision and failure reason attached at archive time.
type StoredEvent struct {
	ID               uuid.UUID   `json:"id"`
	EventID          uuid.UUID   `json:"eventId"`
	EventType        string      `json:"eventType"`
	EventVersion     *string     `json:"eventVersion,omitempty"`
	RoutingID        *uuid.UUID  `json:"routingId,omitempty"`
	DestinationTopic *string     `json:"destinationTopic,omitempty"`
	FailureReason    *string     `json:"failureReason,omitempty"`
	StoredAt         time.Time   `json:"storedAt"`
	EventData        interface{} `json:"eventData"`
}

// Storage is the uniform port over rule, validation, and archived-event
// persistence. All operations take a context and may fail with an *Error
// from the shared taxonomy. GetAllRules returns rules sorted ascending by
// Order; ties break deterministically within a backend.
type Storage interface {
	AddRule(ctx context.Context, rule *model.TopicRoutingRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error)
	GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error
	GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error)
	GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error)
	DeleteTopicValidation(ctx context.Context, id uuid.UUID) error

	StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error
	GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error)
	GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error)
	GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error)
	GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error)
}

// schemasForTopic derives the per-topic schema list from the full
// validation mapping; backends share this for GetValidationsForTopic.
func schemasForTopic(all map[model.Topic][]model.TopicValidationConfig, topic model.Topic) []model.DataSchema {
	configs := all[topic]
	schemas := make([]model.DataSchema, 0, len(configs))
	for _, cfg := range configs {
		schemas = append(schemas, cfg.Schema)
	}
	return schemas
}
