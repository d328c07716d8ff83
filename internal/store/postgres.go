package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresConfig is the connection configuration for the relational
// backend. Endpoint is host or host:port; the port defaults to 5432.
type PostgresConfig struct {
	Username string
	Password string
	Endpoint string
	DBName   string
}

func (c PostgresConfig) connString() string {
	host := c.Endpoint
	if !strings.Contains(host, ":") {
		host += ":5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   host,
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// PostgresStorage persists rules, validations, and archived events in
// postgres through a pgx connection pool. Statements are prepared and
// cached by the pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage runs pending migrations, then opens the pool.
func NewPostgresStorage(ctx context.Context, cfg PostgresConfig) (*PostgresStorage, error) {
	if err := runMigrations(ctx, cfg); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.connString())
	if err != nil {
		return nil, poolErr(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, poolErr(err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStorage) Close() {
	s.pool.Close()
}

func runMigrations(ctx context.Context, cfg PostgresConfig) error {
	logger.Info("running database migrations")
	db, err := sql.Open("pgx", cfg.connString())
	if err != nil {
		return ioErr(err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return ioErr(err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return databaseErr(err)
	}
	logger.Info("database migrations completed")
	return nil
}

const ruleColumns = "id, order_num, topic, description, event_version_condition, event_type_condition"

func (s *PostgresStorage) AddRule(ctx context.Context, rule *model.TopicRoutingRule) error {
	versionCond, typeCond, err := marshalConditions(rule)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO routing_rules (`+ruleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		rule.ID, rule.Order, string(rule.Topic), rule.Description, versionCond, typeCond)
	if err != nil {
		return databaseErr(err)
	}
	return nil
}

func (s *PostgresStorage) GetRule(ctx context.Context, id uuid.UUID) (*model.TopicRoutingRule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM routing_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rule, nil
}

func (s *PostgresStorage) GetAllRules(ctx context.Context) ([]model.TopicRoutingRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM routing_rules ORDER BY order_num`)
	if err != nil {
		return nil, databaseErr(err)
	}
	defer rows.Close()

	var rules []model.TopicRoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, databaseErr(err)
	}
	return rules, nil
}

func (s *PostgresStorage) UpdateRule(ctx context.Context, id uuid.UUID, rule *model.TopicRoutingRule) error {
	versionCond, typeCond, err := marshalConditions(rule)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE routing_rules
		 SET order_num = $2, topic = $3, description = $4,
		     event_version_condition = $5, event_type_condition = $6,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, rule.Order, string(rule.Topic), rule.Description, versionCond, typeCond)
	if err != nil {
		return databaseErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return databaseErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) AddTopicValidation(ctx context.Context, v *model.TopicValidationConfig) error {
	schema, err := json.Marshal(v.Schema)
	if err != nil {
		return serializationErr(err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO topic_validations (id, topic, schema) VALUES ($1, $2, $3)`,
		v.ID, string(v.Topic), schema)
	if err != nil {
		return databaseErr(err)
	}
	return nil
}

func (s *PostgresStorage) GetAllTopicValidations(ctx context.Context) (map[model.Topic][]model.TopicValidationConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, topic, schema FROM topic_validations`)
	if err != nil {
		return nil, databaseErr(err)
	}
	defer rows.Close()

	validations := make(map[model.Topic][]model.TopicValidationConfig)
	for rows.Next() {
		var (
			id     uuid.UUID
			topic  string
			schema []byte
		)
		if err := rows.Scan(&id, &topic, &schema); err != nil {
			return nil, databaseErr(err)
		}
		var ds model.DataSchema
		if err := json.Unmarshal(schema, &ds); err != nil {
			return nil, serializationErr(err)
		}
		cfg := model.TopicValidationConfig{ID: id, Topic: model.Topic(topic), Schema: ds}
		validations[cfg.Topic] = append(validations[cfg.Topic], cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, databaseErr(err)
	}
	return validations, nil
}

func (s *PostgresStorage) GetValidationsForTopic(ctx context.Context, topic model.Topic) ([]model.DataSchema, error) {
	all, err := s.GetAllTopicValidations(ctx)
	if err != nil {
		return nil, err
	}
	return schemasForTopic(all, topic), nil
}

func (s *PostgresStorage) DeleteTopicValidation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM topic_validations WHERE id = $1`, id)
	if err != nil {
		return databaseErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) StoreEvent(ctx context.Context, event *model.Event, routingID *uuid.UUID, destinationTopic *model.Topic, failureReason *string) error {
	eventData, err := json.Marshal(event.Data.Value())
	if err != nil {
		return serializationErr(err)
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return serializationErr(err)
	}
	transportMetadata, err := json.Marshal(event.TransportMetadata)
	if err != nil {
		return serializationErr(err)
	}
	var topic *string
	if destinationTopic != nil {
		t := string(*destinationTopic)
		topic = &t
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, event_id, event_type, event_version, routing_id, destination_topic, failure_reason, event_data, metadata, transport_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), event.ID, event.EventType, event.EventVersion,
		routingID, topic, failureReason, eventData, metadata, transportMetadata)
	if err != nil {
		return databaseErr(err)
	}
	return nil
}

const storedEventColumns = "id, event_id, event_type, event_version, routing_id, destination_topic, failure_reason, stored_at, event_data"

func (s *PostgresStorage) GetEvent(ctx context.Context, id uuid.UUID) (*StoredEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+storedEventColumns+` FROM events WHERE id = $1`, id)
	stored, err := scanStoredEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return stored, nil
}

func (s *PostgresStorage) GetEventsByType(ctx context.Context, eventType string, limit, offset int64) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+storedEventColumns+` FROM events
		 WHERE event_type = $1 ORDER BY stored_at DESC LIMIT $2 OFFSET $3`,
		eventType, limit, offset)
	if err != nil {
		return nil, databaseErr(err)
	}
	return collectStoredEvents(rows)
}

func (s *PostgresStorage) GetEventsByRouting(ctx context.Context, routingID uuid.UUID, limit, offset int64) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+storedEventColumns+` FROM events
		 WHERE routing_id = $1 ORDER BY stored_at DESC LIMIT $2 OFFSET $3`,
		routingID, limit, offset)
	if err != nil {
		return nil, databaseErr(err)
	}
	return collectStoredEvents(rows)
}

func (s *PostgresStorage) GetSampleEvents(ctx context.Context, limit, offset int64) ([]model.Event, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, databaseErr(err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_id, event_type, event_version, event_data, metadata, transport_metadata, stored_at
		 FROM events ORDER BY stored_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, databaseErr(err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			eventID           uuid.UUID
			eventType         string
			eventVersion      *string
			eventData         []byte
			metadata          []byte
			transportMetadata []byte
			storedAt          time.Time
		)
		if err := rows.Scan(&eventID, &eventType, &eventVersion, &eventData, &metadata, &transportMetadata, &storedAt); err != nil {
			return nil, 0, databaseErr(err)
		}

		// Archived payloads that are not JSON objects come back as an
		// empty object, matching what the archive row can express.
		dataMap := map[string]any{}
		var decoded any
		if len(eventData) > 0 {
			if err := json.Unmarshal(eventData, &decoded); err != nil {
				return nil, 0, serializationErr(err)
			}
			if m, ok := decoded.(map[string]any); ok {
				dataMap = m
			}
		}

		meta := map[string]string{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &meta); err != nil {
				meta = map[string]string{}
			}
		}
		var transport map[string]string
		if len(transportMetadata) > 0 {
			_ = json.Unmarshal(transportMetadata, &transport)
		}

		ts := storedAt
		events = append(events, model.Event{
			ID:                eventID,
			EventType:         eventType,
			EventVersion:      eventVersion,
			Metadata:          meta,
			TransportMetadata: transport,
			Data:              model.JSONData(dataMap),
			Timestamp:         &ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, databaseErr(err)
	}
	return events, total, nil
}

func marshalConditions(rule *model.TopicRoutingRule) ([]byte, []byte, error) {
	versionCond, err := json.Marshal(rule.EventVersionCondition)
	if err != nil {
		return nil, nil, serializationErr(err)
	}
	typeCond, err := json.Marshal(rule.EventTypeCondition)
	if err != nil {
		return nil, nil, serializationErr(err)
	}
	return versionCond, typeCond, nil
}

func scanRule(row pgx.Row) (*model.TopicRoutingRule, error) {
	var (
		rule        model.TopicRoutingRule
		topic       string
		versionCond []byte
		typeCond    []byte
	)
	if err := row.Scan(&rule.ID, &rule.Order, &topic, &rule.Description, &versionCond, &typeCond); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, databaseErr(err)
	}
	rule.Topic = model.Topic(topic)
	if len(versionCond) > 0 {
		if err := json.Unmarshal(versionCond, &rule.EventVersionCondition); err != nil {
			return nil, serializationErr(err)
		}
	}
	if err := json.Unmarshal(typeCond, &rule.EventTypeCondition); err != nil {
		return nil, serializationErr(err)
	}
	return &rule, nil
}

func scanStoredEvent(row pgx.Row) (*StoredEvent, error) {
	var (
		stored    StoredEvent
		eventData []byte
	)
	if err := row.Scan(&stored.ID, &stored.EventID, &stored.EventType, &stored.EventVersion,
		&stored.RoutingID, &stored.DestinationTopic, &stored.FailureReason, &stored.StoredAt, &eventData); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, databaseErr(err)
	}
	if len(eventData) > 0 {
		if err := json.Unmarshal(eventData, &stored.EventData); err != nil {
			return nil, serializationErr(err)
		}
	}
	return &stored, nil
}

func collectStoredEvents(rows pgx.Rows) ([]StoredEvent, error) {
	defer rows.Close()
	var events []StoredEvent
	for rows.Next() {
		stored, err := scanStoredEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, databaseErr(err)
	}
	return events, nil
}
