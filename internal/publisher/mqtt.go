package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

// MQTTConfig configures the MQTT publisher. KeepAlive is in seconds.
type MQTTConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ClientID     string `mapstructure:"client_id"`
	KeepAlive    int64  `mapstructure:"keep_alive"`
	CleanSession bool   `mapstructure:"clean_session"`
	QoS          string `mapstructure:"qos"`
	Retain       bool   `mapstructure:"retain"`
}

// MQTTPublisher delivers events over an MQTT connection. The paho client
// runs its own network loop; connection lifecycle events are logged.
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
	retain bool
}

// NewMQTTPublisher connects to the broker and returns the publisher.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	qos, err := parseQoS(cfg.QoS)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second).
		SetCleanSession(cfg.CleanSession)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt client connected", "host", cfg.Host, "port", cfg.Port)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errf("connect to mqtt broker: %v", token.Error())
	}
	return &MQTTPublisher{client: client, qos: qos, retain: cfg.Retain}, nil
}

func (p *MQTTPublisher) PublishOne(ctx context.Context, topic model.Topic, event *model.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errf("serialize event: %v", err)
	}
	token := p.client.Publish(string(topic), p.qos, p.retain, raw)
	token.Wait()
	if err := token.Error(); err != nil {
		return errf("publish to mqtt: %v", err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func parseQoS(s string) (byte, error) {
	switch s {
	case "", "atMostOnce":
		return 0, nil
	case "atLeastOnce":
		return 1, nil
	case "exactlyOnce":
		return 2, nil
	}
	return 0, errf("unknown qos %q", s)
}
