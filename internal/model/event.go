// Package model holds the event gateway's core types: events, topics,
// routing rules, conditions, and validation schemas. All wire shapes are
// frozen; the same JSON form is used over HTTP and in persisted state.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DataType is the producer-supplied description of the payload kind. It is
// descriptive only; the tag on Data is authoritative.
type DataType string

const (
	DataTypeJSON   DataType = "json"
	DataTypeString DataType = "string"
	DataTypeBinary DataType = "binary"
)

type dataKind int

const (
	dataJSON dataKind = iota + 1
	dataString
	dataBinary
)

// Data is the event payload: a tagged union of a JSON object, a string, or
// raw bytes. The JSON form is {"type":"json","content":{...}},
// {"type":"string","content":"..."} or {"type":"binary","content":"<base64>"}.
type Data struct {
	kind   dataKind
	object map[string]any
	text   string
	blob   []byte
}

// JSONData builds a JSON payload.
func JSONData(object map[string]any) Data {
	return Data{kind: dataJSON, object: object}
}

// StringData builds a text payload.
func StringData(text string) Data {
	return Data{kind: dataString, text: text}
}

// BinaryData builds a raw-bytes payload.
func BinaryData(blob []byte) Data {
	return Data{kind: dataBinary, blob: blob}
}

// JSON returns the payload object when the data is tagged json.
func (d Data) JSON() (map[string]any, bool) {
	return d.object, d.kind == dataJSON
}

// Text returns the payload when the data is tagged string.
func (d Data) Text() (string, bool) {
	return d.text, d.kind == dataString
}

// Binary returns the payload when the data is tagged binary.
func (d Data) Binary() ([]byte, bool) {
	return d.blob, d.kind == dataBinary
}

// Value returns the payload as a JSON-marshalable value regardless of tag.
func (d Data) Value() any {
	switch d.kind {
	case dataJSON:
		return d.object
	case dataString:
		return d.text
	case dataBinary:
		return d.blob
	}
	return nil
}

type dataEnvelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

func (d Data) MarshalJSON() ([]byte, error) {
	var tag string
	var content any
	switch d.kind {
	case dataJSON:
		tag, content = "json", d.object
	case dataString:
		tag, content = "string", d.text
	case dataBinary:
		tag, content = "binary", d.blob
	default:
		return nil, fmt.Errorf("cannot marshal empty event data")
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataEnvelope{Type: tag, Content: raw})
}

func (d *Data) UnmarshalJSON(data []byte) error {
	var env dataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case "json":
		var object map[string]any
		if err := json.Unmarshal(env.Content, &object); err != nil {
			return err
		}
		*d = JSONData(object)
	case "string":
		var text string
		if err := json.Unmarshal(env.Content, &text); err != nil {
			return err
		}
		*d = StringData(text)
	case "binary":
		var blob []byte
		if err := json.Unmarshal(env.Content, &blob); err != nil {
			return err
		}
		*d = BinaryData(blob)
	default:
		return fmt.Errorf("unknown event data type %q", env.Type)
	}
	return nil
}

// Event is a typed message flowing through the gateway. Events are treated
// as immutable after construction; the boundary sets TransportMetadata
// before handing the event to the core.
type Event struct {
	ID                uuid.UUID         `json:"id"`
	EventType         string            `json:"eventType"`
	EventVersion      *string           `json:"eventVersion,omitempty"`
	Metadata          map[string]string `json:"metadata"`
	TransportMetadata map[string]string `json:"transportMetadata,omitempty"`
	DataType          *DataType         `json:"dataType,omitempty"`
	Data              Data              `json:"data"`
	Timestamp         *time.Time        `json:"timestamp,omitempty"`
	Origin            *string           `json:"origin,omitempty"`
}
