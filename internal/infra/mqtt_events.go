package infra

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// MQTTEventSink publishes every domain event as JSON to a broker topic.
// QoS 0, auto-reconnect; publish failures are logged and swallowed so the
// pipeline never depends on the broker being up.
type MQTTEventSink struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTEventSink connects to the broker. Connection failure is returned
// so the caller can decide to run without the sink.
func NewMQTTEventSink(broker, topic string, logger *zap.Logger) (*MQTTEventSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("seccamd-%s", uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", broker, token.Error())
	}

	return &MQTTEventSink{client: client, topic: topic, logger: logger}, nil
}

// Emit publishes the event without blocking the caller on broker I/O.
func (s *MQTTEventSink) Emit(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			s.logger.Warn("failed to publish event",
				zap.String("type", string(event.Type)),
				zap.Error(token.Error()))
		}
	}()
}

// Close disconnects from the broker.
func (s *MQTTEventSink) Close() {
	s.client.Disconnect(250)
}

var _ domain.EventSink = (*MQTTEventSink)(nil)
