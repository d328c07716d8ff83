package router

import (
	"testing"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

func strptr(s string) *string { return &s }

func equalsRule(order int32, topic model.Topic, eventType string) model.TopicRoutingRule {
	return model.TopicRoutingRule{
		ID:                 uuid.New(),
		Order:              order,
		Topic:              topic,
		EventTypeCondition: model.ExprCondition(model.Equals(eventType)),
	}
}

func stringEvent(eventType string) *model.Event {
	return &model.Event{
		ID:        uuid.New(),
		EventType: eventType,
		Metadata:  map[string]string{},
		Data:      model.StringData(""),
	}
}

func TestRoute_FirstMatch(t *testing.T) {
	rules := []model.TopicRoutingRule{
		equalsRule(0, "topic_one", "event_one"),
		equalsRule(1, "topic_two", "event_two"),
	}

	if r := Route(rules, stringEvent("event_one")); r == nil || r.Topic != "topic_one" {
		t.Errorf("expected topic_one, got %+v", r)
	}
	if r := Route(rules, stringEvent("event_two")); r == nil || r.Topic != "topic_two" {
		t.Errorf("expected topic_two, got %+v", r)
	}
	if r := Route(rules, stringEvent("event_three")); r != nil {
		t.Errorf("expected no route, got %+v", r)
	}
}

func TestRoute_PicksEarliestRule(t *testing.T) {
	rules := []model.TopicRoutingRule{
		equalsRule(0, "first", "event"),
		equalsRule(1, "second", "event"),
	}
	if r := Route(rules, stringEvent("event")); r == nil || r.Topic != "first" {
		t.Errorf("expected first matching rule, got %+v", r)
	}
}

func TestRoute_VersionMatching(t *testing.T) {
	version := model.ExprCondition(model.Equals("1.0"))
	rule := equalsRule(0, "topic", "event")
	rule.EventVersionCondition = &version
	rules := []model.TopicRoutingRule{rule}

	unversioned := stringEvent("event")
	if r := Route(rules, unversioned); r != nil {
		t.Errorf("rule with version condition must not match versionless event, got %+v", r)
	}

	matching := stringEvent("event")
	matching.EventVersion = strptr("1.0")
	if r := Route(rules, matching); r == nil || r.Topic != "topic" {
		t.Errorf("expected version match, got %+v", r)
	}

	wrongVersion := stringEvent("event")
	wrongVersion.EventVersion = strptr("3.0")
	if r := Route(rules, wrongVersion); r != nil {
		t.Errorf("expected version mismatch to block routing, got %+v", r)
	}
}

func TestRoute_NoVersionConditionMatchesAnyVersion(t *testing.T) {
	rules := []model.TopicRoutingRule{equalsRule(0, "topic", "event")}

	versioned := stringEvent("event")
	versioned.EventVersion = strptr("9.9")
	if r := Route(rules, versioned); r == nil {
		t.Error("rule without version condition should match versioned event")
	}
	if r := Route(rules, stringEvent("event")); r == nil {
		t.Error("rule without version condition should match versionless event")
	}
}

func TestRoute_EmptyRules(t *testing.T) {
	if r := Route(nil, stringEvent("event")); r != nil {
		t.Errorf("expected nil for empty rule set, got %+v", r)
	}
}
