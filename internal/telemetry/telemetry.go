// Package telemetry carries sensor readings over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

const (
	TopicPrefix       = "integrityos/sensors/"
	SubscriptionTopic = TopicPrefix + "+"

	qos         = 1
	waitTimeout = 5 * time.Second
)

func Topic(pipelineID string) string { return TopicPrefix + strings.ToUpper(strings.TrimSpace(pipelineID)) }

// PipelineFromTopic extracts the pipeline id from a sensor topic.
func PipelineFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return strings.ToUpper(id), true
}

func Encode(r domain.SensorReading) ([]byte, error) { return json.Marshal(r) }

// Decode parses a reading; the pipeline id in the topic overrides the payload.
func Decode(topic string, payload []byte) (domain.SensorReading, error) {
	var r domain.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return r, fmt.Errorf("%w: decode reading: %v", domain.ErrInvalidInput, err)
	}
	if id, ok := PipelineFromTopic(topic); ok {
		r.PipelineID = id
	}
	r.PipelineID = strings.ToUpper(strings.TrimSpace(r.PipelineID))
	if r.PipelineID == "" {
		return r, fmt.Errorf("%w: reading on %q has no pipeline id", domain.ErrInvalidInput, topic)
	}
	return r, nil
}

// Connect opens a paho client against broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(waitTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		})
	client := mqtt.NewClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(waitTimeout) {
		return fmt.Errorf("timed out after %s", waitTimeout)
	}
	return t.Error()
}

type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher { return &Publisher{client: client} }

func (p *Publisher) Publish(r domain.SensorReading) error {
	payload, err := Encode(r)
	if err != nil {
		return err
	}
	if err := wait(p.client.Publish(Topic(r.PipelineID), qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", r.PipelineID, err)
	}
	return nil
}

// Handler consumes one message; errors are logged, never fatal.
type Handler func(topic string, payload []byte) error

// Subscribe routes every sensor topic to h.
func Subscribe(client mqtt.Client, h Handler) error {
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).Msg("ingest failed")
		}
	}
	if err := wait(client.Subscribe(SubscriptionTopic, qos, cb)); err != nil {
		return fmt.Errorf("subscribe %s: %w", SubscriptionTopic, err)
	}
	return nil
}
