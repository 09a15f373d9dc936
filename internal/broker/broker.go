package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/config"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/infrastructure/mqtt"
)

// State describes the transport lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// StatusSink receives presence updates decoded from broker traffic.
// The device aggregator satisfies it.
type StatusSink interface {
	UpdateFromBroker(ctx context.Context, deviceName string, connected bool)
}

// session is the broker client surface used by the transport.
// *mqtt.Client satisfies it; tests substitute a fake.
type session interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// Logger defines the logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broker is the long-lived pub/sub transport to the cloud IoT broker.
//
// It owns the session exclusively: other components publish commands and
// receive presence updates through it, never by reaching into the
// connection. Reconnection, backoff and credential rotation live in the
// underlying client; the transport layers topic knowledge, payload
// decoding and lifecycle state on top.
type Broker struct {
	cfg       config.MQTTConfig
	productID string
	creds     mqtt.CredentialsFunc
	sink      StatusSink
	logger    Logger

	topics mqtt.Topics

	mu      sync.RWMutex
	state   State
	session session
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the transport's logger.
func WithLogger(logger Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// New creates a broker transport. No connection is made until Connect.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - productID: Product scope for all topics
//   - creds: Supplies a fresh credential for every connect attempt
//   - sink: Receives presence updates decoded from inbound traffic
func New(cfg config.MQTTConfig, productID string, creds mqtt.CredentialsFunc, sink StatusSink, opts ...Option) *Broker {
	b := &Broker{
		cfg:       cfg,
		productID: productID,
		creds:     creds,
		sink:      sink,
		logger:    noopLogger{},
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect opens the broker session with a generated client identity.
//
// The credential for this and every later reconnect attempt comes from
// the CredentialsFunc at connect time, so a session that drops during a
// long outage reconnects with a fresh secret rather than the one it was
// created with.
func (b *Broker) Connect() error {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return fmt.Errorf("%w: transport closed", mqtt.ErrConnectionFailed)
	}
	if b.session != nil {
		b.mu.Unlock()
		return nil
	}
	b.state = StateConnecting
	b.mu.Unlock()

	clientID := fmt.Sprintf("%s-%s", b.cfg.Broker.ClientIDPrefix, uuid.NewString()[:8])

	client, err := mqtt.Connect(b.cfg, clientID, b.creds)
	if err != nil {
		b.setState(StateDisconnected)
		return err
	}

	client.SetLogger(b.logger)
	client.SetOnConnect(func() {
		b.setState(StateConnected)
		b.logger.Info("broker session established")
	})
	client.SetOnDisconnect(func(err error) {
		b.setState(StateReconnecting)
		b.logger.Warn("broker session lost, reconnecting", "error", err)
	})

	b.mu.Lock()
	b.session = client
	b.state = StateConnected
	b.mu.Unlock()

	b.logger.Info("connected to broker",
		"host", b.cfg.Broker.Host, "clientId", clientID)
	return nil
}

// State returns the current transport state.
func (b *Broker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Broker) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return
	}
	b.state = s
}

// IsConnected reports whether the session is currently up.
func (b *Broker) IsConnected() bool {
	b.mu.RLock()
	s := b.session
	b.mu.RUnlock()
	return s != nil && s.IsConnected()
}

// qos narrows the configured QoS for the client API. Validate has
// already bounded it to 0..2.
func (b *Broker) qos() byte {
	return byte(b.cfg.QoS)
}

// currentSession returns the session or an error when not connected.
func (b *Broker) currentSession() (session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return nil, mqtt.ErrNotConnected
	}
	return b.session, nil
}

// SubscribeDevice subscribes to one device's status and property topics.
//
// A subscribe failure is logged and returned but is not fatal: the
// underlying client retries tracked subscriptions on the next reconnect.
func (b *Broker) SubscribeDevice(deviceName string) error {
	s, err := b.currentSession()
	if err != nil {
		return err
	}

	statusTopic := b.topics.DeviceStatus(b.productID, deviceName)
	if err := s.Subscribe(statusTopic, b.qos(), b.handleStatus); err != nil {
		b.logger.Warn("status subscribe failed, will retry on reconnect",
			"topic", statusTopic, "error", err)
		return err
	}

	propTopic := b.topics.DeviceProperty(b.productID, deviceName)
	if err := s.Subscribe(propTopic, b.qos(), b.handleProperty); err != nil {
		b.logger.Warn("property subscribe failed, will retry on reconnect",
			"topic", propTopic, "error", err)
		return err
	}

	return nil
}

// SubscribeAllDevices subscribes to status and property traffic for every
// device of the product.
func (b *Broker) SubscribeAllDevices() error {
	s, err := b.currentSession()
	if err != nil {
		return err
	}

	if err := s.Subscribe(b.topics.AllDeviceStatus(b.productID), b.qos(), b.handleStatus); err != nil {
		return err
	}
	return s.Subscribe(b.topics.AllDeviceProperty(b.productID), b.qos(), b.handleProperty)
}

// PublishCommand publishes a command envelope to one device's command
// topic. It does not retry: the dispatcher owns fallback.
func (b *Broker) PublishCommand(ctx context.Context, deviceID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s, err := b.currentSession()
	if err != nil {
		return err
	}

	return s.Publish(b.topics.DeviceCommand(b.productID, deviceID), payload, b.qos(), false)
}

// Close tears the session down. The transport cannot be reused after.
func (b *Broker) Close() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.state = StateClosed
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

// handleStatus decodes a status message and forwards the result to the
// sink. Malformed payloads are dropped; the returned error only feeds
// the client's handler logging.
func (b *Broker) handleStatus(topic string, payload []byte) error {
	deviceName, ok := deviceNameFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected status topic %q", topic)
	}

	connected, err := parseStatusPayload(payload)
	if err != nil {
		b.logger.Warn("dropping malformed status message",
			"topic", topic, "error", err)
		return nil
	}

	b.sink.UpdateFromBroker(context.Background(), deviceName, connected)
	return nil
}

// handleProperty treats any well-formed property report as evidence the
// device is online. The report body itself is upstream's concern.
func (b *Broker) handleProperty(topic string, payload []byte) error {
	deviceName, ok := deviceNameFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected property topic %q", topic)
	}

	if !isJSONObject(payload) {
		b.logger.Warn("dropping malformed property message", "topic", topic)
		return nil
	}

	b.sink.UpdateFromBroker(context.Background(), deviceName, true)
	return nil
}

// deviceNameFromTopic extracts the device name segment from a
// status/{productId}/{deviceName} or property/{productId}/{deviceName}
// topic.
func deviceNameFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", false
	}
	name := parts[len(parts)-1]
	if name == "" {
		return "", false
	}
	return name, true
}
