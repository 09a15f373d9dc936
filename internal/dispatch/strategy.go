package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
)

// Strategy is one delivery channel in the ordered fallback chain. A
// strategy either delivers the whole message or returns an error; the
// chain moves on to the next strategy on error.
type Strategy interface {
	// Name identifies the channel in logs and telemetry.
	Name() string

	// Deliver attempts to deliver one message to one device.
	Deliver(ctx context.Context, target device.Connection, msg Message) error
}

// CommandClient is the command channel surface the dispatcher needs.
// *rpc.Client satisfies it.
type CommandClient interface {
	Call(ctx context.Context, method, deviceName string, extra map[string]interface{}) (json.RawMessage, error)
}

// rpcStrategy delivers over the primary command channel.
type rpcStrategy struct {
	client CommandClient
}

// NewRPCStrategy wraps the command channel as a delivery strategy.
func NewRPCStrategy(client CommandClient) Strategy {
	return &rpcStrategy{client: client}
}

func (s *rpcStrategy) Name() string { return "rpc" }

func (s *rpcStrategy) Deliver(ctx context.Context, target device.Connection, msg Message) error {
	method := msg.rpcMethod()
	if method == "" {
		return fmt.Errorf("%w: no command method for kind %q", ErrMalformedMessage, msg.Kind)
	}

	extra := map[string]interface{}{
		"content":   msg.Content,
		"timestamp": msg.Timestamp,
		"messageId": msg.MessageID,
	}
	if msg.Metadata != nil {
		extra["metadata"] = msg.Metadata
	}

	_, err := s.client.Call(ctx, method, target.DisplayName, extra)
	return err
}

// Publisher is the broker surface the dispatcher needs: a single publish
// to a device's command topic, no internal retry. *broker.Broker
// satisfies it.
type Publisher interface {
	PublishCommand(ctx context.Context, deviceID string, payload []byte) error
}

// brokerStrategy delivers by publishing the wire envelope to the
// device's command topic.
type brokerStrategy struct {
	publisher Publisher
}

// NewBrokerStrategy wraps the broker transport as a delivery strategy.
func NewBrokerStrategy(publisher Publisher) Strategy {
	return &brokerStrategy{publisher: publisher}
}

func (s *brokerStrategy) Name() string { return "broker" }

func (s *brokerStrategy) Deliver(ctx context.Context, target device.Connection, msg Message) error {
	payload, err := msg.WireJSON()
	if err != nil {
		return err
	}
	return s.publisher.PublishCommand(ctx, target.ID, payload)
}
