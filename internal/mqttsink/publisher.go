// Package mqttsink publishes engine outputs to an MQTT topic.
package mqttsink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/natya/internal/engine"
)

// DefaultQueueSize bounds the number of outputs waiting to be published.
const DefaultQueueSize = 64

// Publisher is an engine.Sink that forwards outputs as JSON to one topic.
// Recorded outputs are not published; only predictions, conditions and
// refit results reach the display.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte

	queue     chan engine.Output
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	dropped int
}

// Options configures a Publisher.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Queue    int

	// NewClient builds the paho client. Defaults to mqtt.NewClient.
	NewClient func(*mqtt.ClientOptions) mqtt.Client
}

// New connects to the broker and starts the publishing goroutine.
func New(opts Options) (*Publisher, error) {
	if opts.Topic == "" {
		return nil, fmt.Errorf("mqtt publish topic is required")
	}
	if opts.Queue <= 0 {
		opts.Queue = DefaultQueueSize
	}
	if opts.NewClient == nil {
		opts.NewClient = mqtt.NewClient
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := opts.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", opts.Broker, token.Error())
	}

	p := &Publisher{
		client: client,
		topic:  opts.Topic,
		qos:    opts.QoS,
		queue:  make(chan engine.Output, opts.Queue),
		done:   make(chan struct{}),
	}
	go p.run()

	log.Info().Str("broker", opts.Broker).Str("topic", opts.Topic).Msg("publishing outputs over mqtt")
	return p, nil
}

// Publish implements engine.Sink. It never blocks.
func (p *Publisher) Publish(o engine.Output) {
	if o.Kind == engine.KindRecorded {
		return
	}
	select {
	case p.queue <- o:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Dropped returns how many outputs were discarded because the queue was full.
func (p *Publisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close publishes what is queued and disconnects. Publish must not be
// called after Close.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		<-p.done
		p.client.Disconnect(250)
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for o := range p.queue {
		payload, err := json.Marshal(o)
		if err != nil {
			log.Error().Err(err).Msg("encode output")
			continue
		}
		token := p.client.Publish(p.topic, p.qos, false, payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", p.topic).Msg("publish output")
		}
	}
}
