package model

import (
	"github.com/google/uuid"
)

// TopicRoutingRule maps events matching its conditions to a destination
// topic. Rules form an ordered sequence keyed by Order ascending; storage
// backends return them already sorted.
type TopicRoutingRule struct {
	ID                    uuid.UUID  `json:"id"`
	Order                 int32      `json:"order"`
	Topic                 Topic      `json:"topic"`
	EventTypeCondition    Condition  `json:"eventTypeCondition"`
	EventVersionCondition *Condition `json:"eventVersionCondition,omitempty"`
	Description           *string    `json:"description,omitempty"`
}

// Matches reports whether the rule applies to the event. The type condition
// must match the event type; the version condition, when present, must match
// the event version, and an event without a version never matches a rule
// that has one.
func (r *TopicRoutingRule) Matches(e *Event) bool {
	if !r.EventTypeCondition.Matches(e.EventType) {
		return false
	}
	if r.EventVersionCondition == nil {
		return true
	}
	if e.EventVersion == nil {
		return false
	}
	return r.EventVersionCondition.Matches(*e.EventVersion)
}
