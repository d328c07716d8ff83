package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaViolation is one reason a document failed schema validation.
type SchemaViolation struct {
	Message      string `json:"message"`
	InstancePath string `json:"instancePath"`
	SchemaPath   string `json:"schemaPath"`
}

func (v SchemaViolation) String() string {
	return fmt.Sprintf("%s at %s (%s)", v.Message, v.InstancePath, v.SchemaPath)
}

// JSONSchema holds a JSON Schema in both raw and compiled form. Compilation
// is eager at construction/unmarshal time so a bad schema is rejected before
// it is ever stored; the draft is read from $schema (draft-04/-06/-07,
// defaulting to draft-07). Equality is defined on the raw document.
type JSONSchema struct {
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// NewJSONSchema compiles raw into a usable schema.
func NewJSONSchema(raw json.RawMessage) (*JSONSchema, error) {
	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	loader.AutoDetect = true
	compiled, err := loader.Compile(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema compilation failed: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := json.Compact(buf, raw); err != nil {
		return nil, err
	}
	return &JSONSchema{raw: json.RawMessage(buf.Bytes()), compiled: compiled}, nil
}

// Raw returns the raw schema document.
func (s *JSONSchema) Raw() json.RawMessage {
	return s.raw
}

// IsValid reports whether doc satisfies the schema.
func (s *JSONSchema) IsValid(doc any) bool {
	return s.Validate(doc) == nil
}

// Validate checks doc against the schema and returns nil on success or the
// non-empty list of violations.
func (s *JSONSchema) Validate(doc any) []SchemaViolation {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []SchemaViolation{{Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	violations := make([]SchemaViolation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, SchemaViolation{
			Message:      re.Description(),
			InstancePath: re.Context().String(),
			SchemaPath:   re.Type(),
		})
	}
	return violations
}

// Equal compares schemas by their compacted raw form.
func (s *JSONSchema) Equal(o *JSONSchema) bool {
	if s == nil || o == nil {
		return s == o
	}
	return bytes.Equal(s.raw, o.raw)
}

func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	return s.raw, nil
}

func (s *JSONSchema) UnmarshalJSON(data []byte) error {
	schema, err := NewJSONSchema(data)
	if err != nil {
		return err
	}
	*s = *schema
	return nil
}

// Schema is the tagged schema envelope; JSON Schema is currently the only
// variant. Wire form: {"type":"json","data":<raw schema>}.
type Schema struct {
	JSON *JSONSchema
}

// NewSchema wraps a compiled JSON schema.
func NewSchema(js *JSONSchema) Schema {
	return Schema{JSON: js}
}

// IsValid reports whether doc satisfies the schema.
func (s Schema) IsValid(doc any) bool {
	return s.JSON.IsValid(doc)
}

// Validate delegates to the wrapped schema.
func (s Schema) Validate(doc any) []SchemaViolation {
	return s.JSON.Validate(doc)
}

// Equal compares by raw schema document.
func (s Schema) Equal(o Schema) bool {
	return s.JSON.Equal(o.JSON)
}

type schemaEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if s.JSON == nil {
		return nil, fmt.Errorf("cannot marshal empty schema")
	}
	return json.Marshal(schemaEnvelope{Type: "json", Data: s.JSON.Raw()})
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var env schemaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Type != "json" {
		return fmt.Errorf("unknown schema type %q", env.Type)
	}
	js, err := NewJSONSchema(env.Data)
	if err != nil {
		return err
	}
	s.JSON = js
	return nil
}

// DataSchema binds a named JSON Schema to an event type and optional
// version. A schema applies to an event only when both fields match
// (an absent version matches only events without a version).
type DataSchema struct {
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	Schema       Schema            `json:"schema"`
	EventType    string            `json:"event_type"`
	EventVersion *string           `json:"event_version,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// AppliesTo reports whether the schema is keyed to the given event type and
// version pair.
func (d DataSchema) AppliesTo(eventType string, eventVersion *string) bool {
	if d.EventType != eventType {
		return false
	}
	if d.EventVersion == nil || eventVersion == nil {
		return d.EventVersion == nil && eventVersion == nil
	}
	return *d.EventVersion == *eventVersion
}

// TopicValidationConfig attaches a DataSchema to a topic. A topic may carry
// several configs, one per (event type, event version) pair.
type TopicValidationConfig struct {
	ID     uuid.UUID  `json:"id"`
	Topic  Topic      `json:"topic"`
	Schema DataSchema `json:"schema"`
}
