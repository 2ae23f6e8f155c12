package mqttbus

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

// fakeClient records subscriptions and publishes instead of talking to a broker.
type fakeClient struct {
	mu         sync.Mutex
	open       bool
	subscribed []string
	subErr     map[string]error
	handlers   map[string]mqtt.MessageHandler
	published  []published
	pubErr     error
	pubTimeout bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{subErr: map[string]error{}, handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeClient) IsConnected() bool { return f.IsConnectionOpen() }
func (f *fakeClient) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
func (f *fakeClient) Connect() mqtt.Token {
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
	return &fakeToken{}
}
func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
}
func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr == nil && !f.pubTimeout {
		f.published = append(f.published, published{topic: topic, payload: payload.([]byte)})
	}
	return &fakeToken{err: f.pubErr, timeout: f.pubTimeout}
}
func (f *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	f.handlers[topic] = cb
	return &fakeToken{err: f.subErr[topic]}
}
func (f *fakeClient) SubscribeMultiple(filters map[string]byte, cb mqtt.MessageHandler) mqtt.Token {
	for t, q := range filters {
		f.Subscribe(t, q, cb)
	}
	return &fakeToken{}
}
func (f *fakeClient) Unsubscribe(...string) mqtt.Token         { return &fakeToken{} }
func (f *fakeClient) AddRoute(string, mqtt.MessageHandler)     {}
func (f *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

type fakeMessage struct {
	topic   string
	payload []byte
	qos     byte
	dup     bool
	id      uint16
}

func (m *fakeMessage) Duplicate() bool   { return m.dup }
func (m *fakeMessage) Qos() byte         { return m.qos }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return m.id }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
