package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
)

// stubStorage is a mutable in-memory backend used to exercise the cache.
type stubStorage struct {
	mu          sync.Mutex
	rules       []model.TopicRoutingRule
	validations map[model.Topic][]model.TopicValidationConfig
	ruleLoads   int
	storedCount int
}

var _ Storage = (*stubStorage)(nil)

func newStubStorage() *stubStorage {
	return &stubStorage{validations: map[model.Topic][]model.TopicValidationConfig{}}
}

func (s *stubStorage) AddRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, *rule)
	return nil
}

func (s *stubStorage) GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			rule := s.rules[i]
			return &rule, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStorage) GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleLoads++
	return append([]model.TopicRoutingRule(nil), s.rules...), nil
}

func (s *stubStorage) UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i] = *rule
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubStorage) DeleteRule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *stubStorage) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[v.Topic] = append(s.validations[v.Topic], *v)
	return nil
}

func (s *stubStorage) GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Topic][]model.TopicValidationConfig, len(s.validations))
	for topic, configs := range s.validations {
		out[topic] = append([]model.TopicValidationConfig(nil), configs...)
	}
	return out, nil
}

func (s *stubStorage) GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error) {
	all, err := s.GetAllTopicValidations(ctx)
	if err != nil {
		return nil, err
	}
	return schemasForTopic(all, topic), nil
}

func (s *stubStorage) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, configs := range s.validations {
		kept := configs[:0]
		for _, cfg := range configs {
			if cfg.ID != id {
				kept = append(kept, cfg)
			}
		}
		s.validations[topic] = kept
	}
	return nil
}

func (s *stubStorage) StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storedCount++
	return nil
}

func (s *stubStorage) GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error) {
	return nil, ErrNotFound
}

func (s *stubStorage) GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error) {
	return nil, nil
}

func (s *stubStorage) GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error) {
	return nil, nil
}

func (s *stubStorage) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return nil, 0, nil
}

func (s *stubStorage) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ruleLoads
}

func (s *stubStorage) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedCount
}

func newCached(t *testing.T, backend Storage, interval time.Duration) *CachedStorage {
	t.Helper()
	cached, err := NewCachedStorage(context.Background(), backend, interval)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cached.Close)
	return cached
}

func TestCachedStorage_ServesReadsFromSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	rule := dummyRule(0, "topic")
	if err := backend.AddRule(ctx, &rule); err != nil {
		t.Fatal(err)
	}

	cached := newCached(t, backend, time.Hour)

	loadsAfterInit := backend.loads()
	for i := 0; i < 10; i++ {
		rules, err := cached.GetAllRules(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(rules) != 1 || rules[0].ID != rule.ID {
			t.Fatalf("snapshot missing rule: %+v", rules)
		}
	}
	if backend.loads() != loadsAfterInit {
		t.Errorf("reads hit the backend: %d loads after init, %d now", loadsAfterInit, backend.loads())
	}
}

func TestCachedStorage_WriteForcesRefresh(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	cached := newCached(t, backend, time.Hour)

	rule := dummyRule(0, "topic")
	if err := cached.AddRule(ctx, &rule); err != nil {
		t.Fatal(err)
	}

	rules, err := cached.GetAllRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != rule.ID {
		t.Errorf("added rule not visible after AddRule returned: %+v", rules)
	}

	if err := cached.DeleteRule(ctx, rule.ID); err != nil {
		t.Fatal(err)
	}
	rules, err = cached.GetAllRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 0 {
		t.Errorf("deleted rule still visible: %+v", rules)
	}
}

func TestCachedStorage_StaleReadSchedulesRefresh(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	cached := newCached(t, backend, 10*time.Millisecond)

	rule := dummyRule(0, "topic")
	if err := backend.AddRule(ctx, &rule); err != nil {
		t.Fatal(err)
	}

	// The stale read itself must return the old snapshot without blocking.
	time.Sleep(20 * time.Millisecond)
	if _, err := cached.GetAllRules(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rules, err := cached.GetAllRules(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(rules) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("backend change never became visible through the cache")
}

func TestCachedStorage_ConcurrentWritesAndReads(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	cached := newCached(t, backend, time.Hour)

	var wg sync.WaitGroup
	const writers = 8
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(order int32) {
			defer wg.Done()
			rule := dummyRule(order, "topic")
			if err := cached.AddRule(ctx, &rule); err != nil {
				t.Errorf("AddRule: %v", err)
			}
		}(int32(i))
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := cached.GetAllRules(ctx); err != nil {
					t.Errorf("GetAllRules: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// A final synchronous refresh settles in-flight CAS losers.
	if err := cached.forceRefresh(ctx); err != nil {
		t.Fatal(err)
	}
	rules, err := cached.GetAllRules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != writers {
		t.Errorf("expected %d rules after concurrent writes, got %d", writers, len(rules))
	}
}

func TestCachedStorage_EventOpsPassThrough(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	cached := newCached(t, backend, time.Hour)

	if err := cached.StoreEvent(ctx, dummyEvent("event"), nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if backend.stored() != 1 {
		t.Errorf("expected StoreEvent to reach the backend, got %d calls", backend.stored())
	}
}

func TestCachedStorage_ValidationsVisibleAfterWrite(t *testing.T) {
	ctx := context.Background()
	backend := newStubStorage()
	cached := newCached(t, backend, time.Hour)

	v := dummyValidation(t, "orders", "order_created")
	if err := cached.AddTopicValidation(ctx, &v); err != nil {
		t.Fatal(err)
	}
	schemas, err := cached.GetValidationsForTopic(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 1 {
		t.Errorf("expected validation to be visible after write, got %d", len(schemas))
	}
}
