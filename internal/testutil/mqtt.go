// Package testutil provides shared test fakes.
package testutil

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published is one message recorded by FakeMQTTClient.Publish.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeMQTTClient is an in-memory mqtt.Client. Publish on a subscribed topic
// is delivered to the subscription callback synchronously.
type FakeMQTTClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	handlers   map[string]mqtt.MessageHandler
	published  []Published
	subscribed chan string
}

// NewFakeMQTTClient creates a disconnected fake client.
func NewFakeMQTTClient() *FakeMQTTClient {
	return &FakeMQTTClient{
		handlers:   make(map[string]mqtt.MessageHandler),
		subscribed: make(chan string, 16),
	}
}

// FailConnect makes Connect return err.
func (c *FakeMQTTClient) FailConnect(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.mu.Unlock()
}

// Subscribed receives each topic as it is subscribed.
func (c *FakeMQTTClient) Subscribed() <-chan string {
	return c.subscribed
}

// Deliver hands payload to the callback registered for topic. It reports
// false when nothing is subscribed.
func (c *FakeMQTTClient) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(c, &fakeMessage{topic: topic, payload: payload})
	return true
}

// Messages returns everything published so far.
func (c *FakeMQTTClient) Messages() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

func (c *FakeMQTTClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FakeMQTTClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *FakeMQTTClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return doneToken(c.connectErr)
	}
	c.connected = true
	return doneToken(nil)
}

func (c *FakeMQTTClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *FakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = append([]byte(nil), p...)
	case string:
		b = []byte(p)
	}

	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: b})
	c.mu.Unlock()

	c.Deliver(topic, b)
	return doneToken(nil)
}

func (c *FakeMQTTClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()

	select {
	case c.subscribed <- topic:
	default:
	}
	return doneToken(nil)
}

func (c *FakeMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return doneToken(nil)
}

func (c *FakeMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.mu.Unlock()
	return doneToken(nil)
}

func (c *FakeMQTTClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
}

func (c *FakeMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
