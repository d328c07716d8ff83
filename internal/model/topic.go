package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxTopicLength is the maximum topic length in bytes.
const MaxTopicLength = 255

// Topic is a validated destination name on the messaging bus. It serializes
// as a plain JSON string; construct it through NewTopic so invalid names
// never reach the core.
type Topic string

// ErrTopicEmpty is returned for an empty topic name.
var ErrTopicEmpty = errors.New("topic cannot be empty")

// TopicTooLongError is returned when a topic exceeds MaxTopicLength bytes.
type TopicTooLongError struct {
	Length int
}

func (e *TopicTooLongError) Error() string {
	return fmt.Sprintf("topic is too long: %d bytes (max: %d)", e.Length, MaxTopicLength)
}

// TopicInvalidCharsError is returned when a topic contains characters
// outside [A-Za-z0-9._-].
type TopicInvalidCharsError struct {
	Chars string
}

func (e *TopicInvalidCharsError) Error() string {
	return fmt.Sprintf("topic contains invalid characters: %q", e.Chars)
}

// NewTopic validates s and returns it as a Topic. Topics must be non-empty,
// at most 255 bytes, and contain only alphanumerics, dots, hyphens, and
// underscores.
func NewTopic(s string) (Topic, error) {
	if s == "" {
		return "", ErrTopicEmpty
	}
	if len(s) > MaxTopicLength {
		return "", &TopicTooLongError{Length: len(s)}
	}
	var invalid strings.Builder
	for _, c := range s {
		if !isTopicChar(c) {
			invalid.WriteRune(c)
		}
	}
	if invalid.Len() > 0 {
		return "", &TopicInvalidCharsError{Chars: invalid.String()}
	}
	return Topic(s), nil
}

func isTopicChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '-' || c == '_':
		return true
	}
	return false
}

func (t Topic) String() string {
	return string(t)
}

// UnmarshalJSON validates the topic on the way in so stored and transported
// topics obey the same rules as constructed ones.
func (t *Topic) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	topic, err := NewTopic(s)
	if err != nil {
		return err
	}
	*t = topic
	return nil
}
