package sensor

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTSource subscribes to a topic carrying accelerometer payloads, either
// DIPPID messages or flat {"ax","ay","az"} objects.
type MQTTSource struct {
	broker   string
	topic    string
	clientID string
	qos      byte

	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTSource creates a source for topic on broker.
func NewMQTTSource(broker, topic, clientID string) *MQTTSource {
	return &MQTTSource{
		broker:    broker,
		topic:     topic,
		clientID:  clientID,
		newClient: mqtt.NewClient,
	}
}

// WithClientFactory replaces the function that builds the paho client.
func (s *MQTTSource) WithClientFactory(f func(*mqtt.ClientOptions) mqtt.Client) *MQTTSource {
	s.newClient = f
	return s
}

// Name implements Source.
func (s *MQTTSource) Name() string { return "mqtt " + s.topic }

// Run implements Source.
func (s *MQTTSource) Run(ctx context.Context, emit func(Reading)) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := s.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect mqtt broker %s: %w", s.broker, token.Error())
	}
	defer client.Disconnect(250)

	// paho delivers messages from its own goroutine; funnel them so emit
	// is only ever called from Run.
	msgs := make(chan []byte, 64)
	token := client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case msgs <- msg.Payload():
		default:
			log.Warn().Str("source", "mqtt").Str("topic", msg.Topic()).Msg("reading queue full, dropping message")
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	log.Info().Str("source", "mqtt").Str("broker", s.broker).Str("topic", s.topic).Msg("subscribed")

	for {
		select {
		case <-ctx.Done():
			client.Unsubscribe(s.topic).WaitTimeout(time.Second)
			return ctx.Err()

		case payload := <-msgs:
			rs, err := ParsePayload(payload, time.Now())
			if err != nil {
				log.Debug().Err(err).Str("source", "mqtt").Msg("dropping message")
				continue
			}
			for _, r := range rs {
				emit(r)
			}
		}
	}
}
