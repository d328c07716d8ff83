package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"github.com/agnostech/event-gateway/internal/model"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers            []string      `mapstructure:"brokers"`
	Compression        string        `mapstructure:"compression"`
	ClientID           string        `mapstructure:"client_id"`
	RequiredAcks       string        `mapstructure:"required_acks"`
	ConnIdleTimeout    time.Duration `mapstructure:"conn_idle_timeout"`
	MessageTimeout     time.Duration `mapstructure:"message_timeout"`
	AckTimeout         time.Duration `mapstructure:"ack_timeout"`
	MetadataFieldAsKey string        `mapstructure:"metadata_field_as_key"`
}

// KafkaPublisher delivers events through a synchronous Kafka producer.
type KafkaPublisher struct {
	producer           sarama.SyncProducer
	metadataFieldAsKey string
}

// NewKafkaPublisher builds the producer from the config. Broker
// connections are established lazily; a construction failure here is
// fatal at startup.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	compression, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	acks, err := parseRequiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Compression = compression
	sc.Producer.RequiredAcks = acks
	sc.Producer.Timeout = cfg.AckTimeout
	sc.Producer.Return.Successes = true
	sc.Net.KeepAlive = cfg.ConnIdleTimeout
	sc.Net.WriteTimeout = cfg.MessageTimeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errf("create kafka producer: %v", err)
	}
	return &KafkaPublisher{producer: producer, metadataFieldAsKey: cfg.MetadataFieldAsKey}, nil
}

func (p *KafkaPublisher) PublishOne(ctx context.Context, topic model.Topic, event *model.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errf("serialize event: %v", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: string(topic),
		Key:   sarama.StringEncoder(messageKey(p.metadataFieldAsKey, event)),
		Value: sarama.ByteEncoder(raw),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errf("send to kafka: %v", err)
	}
	return nil
}

// Close shuts down the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// messageKey picks the partition key: the named metadata field when
// present, the event id otherwise.
func messageKey(metadataField string, event *model.Event) string {
	if metadataField != "" {
		if v, ok := event.Metadata[metadataField]; ok {
			return v
		}
	}
	return event.ID.String()
}

func parseCompression(s string) (sarama.CompressionCodec, error) {
	switch s {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	}
	return 0, errf("unknown compression %q", s)
}

func parseRequiredAcks(s string) (sarama.RequiredAcks, error) {
	switch s {
	case "none":
		return sarama.NoResponse, nil
	case "", "one":
		return sarama.WaitForLocal, nil
	case "all":
		return sarama.WaitForAll, nil
	}
	return 0, errf("unknown required_acks %q", s)
}
