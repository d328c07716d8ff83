package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	},
	"required": ["name"]
}`

func mustSchema(t *testing.T, raw string) *JSONSchema {
	t.Helper()
	js, err := NewJSONSchema(json.RawMessage(raw))
	if err != nil {
		t.Fatal(err)
	}
	return js
}

func TestJSONSchema_Validate(t *testing.T) {
	js := mustSchema(t, personSchema)

	if violations := js.Validate(map[string]any{"name": "John", "age": 30}); violations != nil {
		t.Errorf("valid document rejected: %v", violations)
	}

	violations := js.Validate(map[string]any{"age": 30})
	if len(violations) == 0 {
		t.Fatal("expected missing required field to fail")
	}
	if violations[0].Message == "" {
		t.Error("expected a violation message")
	}

	violations = js.Validate(map[string]any{"name": "John", "age": "thirty"})
	if len(violations) == 0 {
		t.Fatal("expected wrong type to fail")
	}
	found := false
	for _, v := range violations {
		if v.InstancePath != "" && v.InstancePath != "(root)" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an instance path pointing at the bad field: %v", violations)
	}
}

func TestNewJSONSchema_RejectsBadSchema(t *testing.T) {
	if _, err := NewJSONSchema(json.RawMessage(`{"type": 12}`)); err == nil {
		t.Error("expected compilation of a malformed schema to fail")
	}
}

func TestJSONSchema_RoundTripPreservesVerdict(t *testing.T) {
	js := mustSchema(t, personSchema)
	raw, err := json.Marshal(js)
	if err != nil {
		t.Fatal(err)
	}
	var back JSONSchema
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(js) {
		t.Error("raw schema changed across round trip")
	}
	for _, doc := range []map[string]any{
		{"name": "a"},
		{"age": 1},
		{"name": "a", "age": -1},
	} {
		if js.IsValid(doc) != back.IsValid(doc) {
			t.Errorf("verdict for %v differs after round trip", doc)
		}
	}
}

func TestSchema_Envelope(t *testing.T) {
	s := NewSchema(mustSchema(t, `{"type":"object"}`))
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"json","data":{"type":"object"}}` {
		t.Errorf("unexpected envelope: %s", raw)
	}
	var back Schema
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(s) {
		t.Error("schema changed across round trip")
	}

	if err := json.Unmarshal([]byte(`{"type":"avro","data":{}}`), &back); err == nil {
		t.Error("expected unknown schema type to be rejected")
	}
}

func TestDataSchema_AppliesTo(t *testing.T) {
	base := DataSchema{
		Name:      "person",
		Schema:    NewSchema(mustSchema(t, personSchema)),
		EventType: "person_created",
	}
	versioned := base
	versioned.EventVersion = strptr("1.0")

	tests := []struct {
		name         string
		schema       DataSchema
		eventType    string
		eventVersion *string
		want         bool
	}{
		{"type and nil versions", base, "person_created", nil, true},
		{"nil schema version, event has one", base, "person_created", strptr("1.0"), false},
		{"versions equal", versioned, "person_created", strptr("1.0"), true},
		{"versions differ", versioned, "person_created", strptr("2.0"), false},
		{"schema version, event has none", versioned, "person_created", nil, false},
		{"type differs", base, "person_deleted", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schema.AppliesTo(tt.eventType, tt.eventVersion); got != tt.want {
				t.Errorf("AppliesTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopicValidationConfig_RoundTrip(t *testing.T) {
	cfg := TopicValidationConfig{
		ID:    uuid.New(),
		Topic: "person_events",
		Schema: DataSchema{
			Name:         "person",
			Description:  strptr("A schema."),
			Schema:       NewSchema(mustSchema(t, personSchema)),
			EventType:    "person_created",
			EventVersion: strptr("1"),
		},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var back TopicValidationConfig
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != cfg.ID || back.Topic != cfg.Topic || back.Schema.Name != cfg.Schema.Name {
		t.Errorf("round trip changed config: %+v", back)
	}
	if !back.Schema.Schema.Equal(cfg.Schema.Schema) {
		t.Error("schema changed across round trip")
	}
}

func TestTopicRoutingRule_RoundTrip(t *testing.T) {
	version := ExprCondition(Equals("1"))
	rule := TopicRoutingRule{
		ID:                    uuid.New(),
		Order:                 1,
		Topic:                 "example",
		EventTypeCondition:    ExprCondition(StartsWith("test")),
		EventVersionCondition: &version,
		Description:           strptr("A routing rule."),
	}
	raw, err := json.Marshal(rule)
	if err != nil {
		t.Fatal(err)
	}
	var back TopicRoutingRule
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != rule.ID || back.Order != rule.Order || back.Topic != rule.Topic {
		t.Errorf("round trip changed rule: %+v", back)
	}
	if !back.EventTypeCondition.Equal(rule.EventTypeCondition) {
		t.Error("type condition changed across round trip")
	}
	if back.EventVersionCondition == nil || !back.EventVersionCondition.Equal(version) {
		t.Error("version condition changed across round trip")
	}
}
