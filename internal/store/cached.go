package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

// DefaultCacheRefreshInterval is used when the configuration does not set
// a refresh interval.
const DefaultCacheRefreshInterval = 300 * time.Second

// CachedStorage wraps another Storage and serves rule and validation
// reads from in-memory snapshots refreshed by a background task. Reads
// never block on the database: a stale snapshot schedules a refresh and
// returns the current value. Writes delegate to the backend and then
// force a synchronous refresh; if a refresh is already running the write
// returns immediately and becomes visible on the next completed refresh.
// Event operations always pass through.
type CachedStorage struct {
	backend         Storage
	refreshInterval time.Duration

	mu          sync.RWMutex
	rules       []model.TopicRoutingRule
	validations map[model.Topic][]model.TopicValidationConfig
	lastRefresh time.Time

	refreshing atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewCachedStorage performs the initial snapshot load and starts the
// periodic refresh task. Close stops the task.
func NewCachedStorage(ctx context.Context, backend Storage, refreshInterval time.Duration) (*CachedStorage, error) {
	if refreshInterval <= 0 {
		refreshInterval = DefaultCacheRefreshInterval
	}
	s := &CachedStorage{
		backend:         backend,
		refreshInterval: refreshInterval,
		validations:     map[model.Topic][]model.TopicValidationConfig{},
		stop:            make(chan struct{}),
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	go s.backgroundRefresh()
	return s, nil
}

// Close stops the background refresh task.
func (s *CachedStorage) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *CachedStorage) backgroundRefresh() {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.forceRefresh(context.Background()); err != nil {
				logger.Warn("cache refresh failed", "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

// refresh loads both snapshots from the backend and swaps them in. A
// failure leaves the previous snapshots intact.
func (s *CachedStorage) refresh(ctx context.Context) error {
	rules, err := s.backend.GetAllRules(ctx)
	if err != nil {
		return err
	}
	validations, err := s.backend.GetAllTopicValidations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rules = rules
	s.validations = validations
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	logger.Debug("cache refreshed", "rules", len(rules), "topic_validations", len(validations))
	return nil
}

// forceRefresh runs a refresh unless one is already in progress, in
// which case it yields immediately.
func (s *CachedStorage) forceRefresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.refreshing.Store(false)
	return s.refresh(ctx)
}

// maybeScheduleRefresh kicks off a background refresh when the snapshot
// has outlived the refresh interval. Callers keep reading the current
// snapshot either way.
func (s *CachedStorage) maybeScheduleRefresh() {
	s.mu.RLock()
	stale := time.Since(s.lastRefresh) >= s.refreshInterval
	s.mu.RUnlock()
	if !stale {
		return
	}
	go func() {
		if err := s.forceRefresh(context.Background()); err != nil {
			logger.Warn("background cache refresh failed", "error", err)
		}
	}()
}

func (s *CachedStorage) AddRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	if err := s.backend.AddRule(ctx, rule); err != nil {
		return err
	}
	return s.forceRefresh(ctx)
}

func (s *CachedStorage) GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error) {
	s.maybeScheduleRefresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			rule := s.rules[i]
			return &rule, nil
		}
	}
	return nil, ErrNotFound
}

func (s *CachedStorage) GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	s.maybeScheduleRefresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TopicRoutingRule(nil), s.rules...), nil
}

func (s *CachedStorage) UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	if err := s.backend.UpdateRule(ctx, id, rule); err != nil {
		return err
	}
	return s.forceRefresh(ctx)
}

func (s *CachedStorage) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.backend.DeleteRule(ctx, id); err != nil {
		return err
	}
	return s.forceRefresh(ctx)
}

func (s *CachedStorage) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	if err := s.backend.AddTopicValidation(ctx, v); err != nil {
		return err
	}
	return s.forceRefresh(ctx)
}

func (s *CachedStorage) GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	s.maybeScheduleRefresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Topic][]model.TopicValidationConfig, len(s.validations))
	for topic, configs := range s.validations {
		out[topic] = append([]model.TopicValidationConfig(nil), configs...)
	}
	return out, nil
}

func (s *CachedStorage) GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error) {
	s.maybeScheduleRefresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schemasForTopic(s.validations, topic), nil
}

func (s *CachedStorage) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	if err := s.backend.DeleteTopicValidation(ctx, id); err != nil {
		return err
	}
	return s.forceRefresh(ctx)
}

func (s *CachedStorage) StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error {
	return s.backend.StoreEvent(ctx, event, routingID, destinationTopic, failureReason)
}

func (s *CachedStorage) GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error) {
	return s.backend.GetEvent(ctx, id)
}

func (s *CachedStorage) GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error) {
	return s.backend.GetEventsByType(ctx, eventType, limit, offset)
}

func (s *CachedStorage) GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error) {
	return s.backend.GetEventsByRouting(ctx, routingID, limit, offset)
}

func (s *CachedStorage) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	return s.backend.GetSampleEvents(ctx, limit, offset)
}
