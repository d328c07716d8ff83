package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

const (
	rulesDir       = "rules"
	validationsDir = "validations"
	eventsDir      = "events"
)

// FileStorage persists each entity as one JSON file under a base
// directory with rules/, validations/ and events/ sub-directories.
// Writes overwrite, so creation is idempotent. A single mutex serializes
// access; writes are not atomic across a crash.
type FileStorage struct {
	base string
	mu   sync.Mutex
}

// NewFileStorage creates the directory tree under base if needed.
func NewFileStorage(base string) (*FileStorage, error) {
	for _, dir := range []string{rulesDir, validationsDir, eventsDir} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o755); err != nil {
			return nil, ioErr(err)
		}
	}
	return &FileStorage{base: base}, nil
}

func (s *FileStorage) entityPath(dir string, id uuid.UUID) string {
	return filepath.Join(s.base, dir, id.String()+".json")
}

func (s *FileStorage) writeEntity(dir string, id uuid.UUID, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return serializationErr(err)
	}
	if err := os.WriteFile(s.entityPath(dir, id), raw, 0o644); err != nil {
		return ioErr(err)
	}
	return nil
}

func (s *FileStorage) readEntity(dir string, id uuid.UUID, v any) error {
	raw, err := os.ReadFile(s.entityPath(dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return ioErr(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return serializationErr(err)
	}
	return nil
}

func (s *FileStorage) removeEntity(dir string, id uuid.UUID) error {
	if err := os.Remove(s.entityPath(dir, id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return ioErr(err)
	}
	return nil
}

// readAll decodes every .json file under dir. Other files are skipped.
func readAll[T any](s *FileStorage, dir string) ([]T, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, dir))
	if err != nil {
		return nil, ioErr(err)
	}
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.base, dir, entry.Name()))
		if err != nil {
			return nil, ioErr(err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, serializationErr(err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *FileStorage) AddRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEntity(rulesDir, rule.ID, rule)
}

func (s *FileStorage) GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rule model.TopicRoutingRule
	if err := s.readEntity(rulesDir, id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *FileStorage) GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := readAll[model.TopicRoutingRule](s, rulesDir)
	if err != nil {
		return nil, err
	}
	sortRules(rules)
	return rules, nil
}

func (s *FileStorage) UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.entityPath(rulesDir, id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return ioErr(err)
	}
	return s.writeEntity(rulesDir, id, rule)
}

func (s *FileStorage) DeleteRule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeEntity(rulesDir, id)
}

func (s *FileStorage) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEntity(validationsDir, v.ID, v)
}

func (s *FileStorage) GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs, err := readAll[model.TopicValidationConfig](s, validationsDir)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Topic][]model.TopicValidationConfig)
	for _, cfg := range configs {
		out[cfg.Topic] = append(out[cfg.Topic], cfg)
	}
	return out, nil
}

func (s *FileStorage) GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error) {
	all, err := s.GetAllTopicValidations(ctx)
	if err != nil {
		return nil, err
	}
	return schemasForTopic(all, topic), nil
}

func (s *FileStorage) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeEntity(validationsDir, id)
}

func (s *FileStorage) StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := StoredEvent{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		EventVersion:  event.EventVersion,
		RoutingID:     routingID,
		FailureReason: failureReason,
		StoredAt:      time.Now().UTC(),
		EventData:     event.Data.Value(),
	}
	if destinationTopic != nil {
		topic := string(*destinationTopic)
		stored.DestinationTopic = &topic
	}
	return s.writeEntity(eventsDir, stored.ID, &stored)
}

func (s *FileStorage) GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stored StoredEvent
	if err := s.readEntity(eventsDir, id, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *FileStorage) GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error) {
	return s.listEvents(func(e *StoredEvent) bool { return e.EventType == eventType }, limit, offset)
}

func (s *FileStorage) GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error) {
	return s.listEvents(func(e *StoredEvent) bool {
		return e.RoutingID != nil && *e.RoutingID == routingID
	}, limit, offset)
}

// GetSampleEvents is not supported on the file tree; listing archived
// payloads as events would require scanning every file on each page.
func (s *FileStorage) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return nil, 0, ErrUnsupported
}

func (s *FileStorage) listEvents(keep func(*StoredEvent) bool, limit, offset int64) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readAll[StoredEvent](s, eventsDir)
	if err != nil {
		return nil, err
	}
	matched := make([]StoredEvent, 0, len(all))
	for i := range all {
		if keep(&all[i]) {
			matched = append(matched, all[i])
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StoredAt.After(matched[j].StoredAt)
	})
	if offset >= int64(len(matched)) {
		return []StoredEvent{}, nil
	}
	matched = matched[offset:]
	if limit < int64(len(matched)) {
		matched = matched[:limit]
	}
	return matched, nil
}
