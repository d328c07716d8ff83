package publisher

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

func testEvent() *model.Event {
	return &model.Event{
		ID:        uuid.New(),
		EventType: "test_type",
		Metadata:  map[string]string{"partition": "p1"},
		Data:      model.JSONData(map[string]any{"key": "value"}),
	}
}

func TestNoOpPublisher(t *testing.T) {
	if err := (NoOpPublisher{}).PublishOne(context.Background(), "topic", testEvent()); err != nil {
		t.Errorf("no-op publish failed: %v", err)
	}
}

func TestMessageKey(t *testing.T) {
	event := testEvent()

	if key := messageKey("partition", event); key != "p1" {
		t.Errorf("expected metadata field value, got %q", key)
	}
	if key := messageKey("missing", event); key != event.ID.String() {
		t.Errorf("expected event id fallback, got %q", key)
	}
	if key := messageKey("", event); key != event.ID.String() {
		t.Errorf("expected event id when no field configured, got %q", key)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    sarama.CompressionCodec
		wantErr bool
	}{
		{"none", sarama.CompressionNone, false},
		{"", sarama.CompressionNone, false},
		{"gzip", sarama.CompressionGZIP, false},
		{"snappy", sarama.CompressionSnappy, false},
		{"zstd", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCompression(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseCompression(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRequiredAcks(t *testing.T) {
	tests := []struct {
		in      string
		want    sarama.RequiredAcks
		wantErr bool
	}{
		{"none", sarama.NoResponse, false},
		{"one", sarama.WaitForLocal, false},
		{"", sarama.WaitForLocal, false},
		{"all", sarama.WaitForAll, false},
		{"two", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRequiredAcks(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRequiredAcks(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseRequiredAcks(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseQoS(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"atMostOnce", 0, false},
		{"", 0, false},
		{"atLeastOnce", 1, false},
		{"exactlyOnce", 2, false},
		{"always", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQoS(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQoS(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseQoS(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
