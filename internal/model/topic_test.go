package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewTopic_Valid(t *testing.T) {
	for _, name := range []string{
		"valid_topic",
		"valid.topic",
		"valid-topic",
		"valid_topic.123",
		"ValidTopic",
		strings.Repeat("a", 255),
	} {
		topic, err := NewTopic(name)
		if err != nil {
			t.Errorf("NewTopic(%q): unexpected error %v", name, err)
			continue
		}
		if topic.String() != name {
			t.Errorf("NewTopic(%q) = %q, want the input back", name, topic)
		}
	}
}

func TestNewTopic_Empty(t *testing.T) {
	if _, err := NewTopic(""); !errors.Is(err, ErrTopicEmpty) {
		t.Errorf("expected ErrTopicEmpty, got %v", err)
	}
}

func TestNewTopic_TooLong(t *testing.T) {
	_, err := NewTopic(strings.Repeat("a", 256))
	var tooLong *TopicTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("expected TopicTooLongError, got %v", err)
	}
	if tooLong.Length != 256 {
		t.Errorf("expected length 256, got %d", tooLong.Length)
	}
}

func TestNewTopic_InvalidCharacters(t *testing.T) {
	for _, name := range []string{"a b", "invalid/topic", "topic!"} {
		_, err := NewTopic(name)
		var invalid *TopicInvalidCharsError
		if !errors.As(err, &invalid) {
			t.Errorf("NewTopic(%q): expected TopicInvalidCharsError, got %v", name, err)
		}
	}

	_, err := NewTopic("a b")
	var invalid *TopicInvalidCharsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected TopicInvalidCharsError, got %v", err)
	}
	if invalid.Chars != " " {
		t.Errorf("expected offending chars %q, got %q", " ", invalid.Chars)
	}
}

func TestTopic_JSONRoundTrip(t *testing.T) {
	topic, err := NewTopic("test_topic")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(topic)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"test_topic"` {
		t.Errorf("expected transparent string serialization, got %s", raw)
	}
	var back Topic
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back != topic {
		t.Errorf("round trip changed topic: %q != %q", back, topic)
	}
}

func TestTopic_UnmarshalRejectsInvalid(t *testing.T) {
	var topic Topic
	if err := json.Unmarshal([]byte(`"bad topic"`), &topic); err == nil {
		t.Error("expected unmarshal of invalid topic to fail")
	}
}
