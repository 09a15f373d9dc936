package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
)

// defaultQueueSize bounds the offline retry queue when no size is
// configured.
const defaultQueueSize = 32

// Logger defines the logging interface used by the dispatcher.
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

// Presence is the read surface of the device aggregator the dispatcher
// needs: a point-in-time snapshot of connected devices.
type Presence interface {
	Connected() []device.Connection
	GetByName(name string) (device.Connection, error)
}

// Telemetry receives delivery outcome measurements. All methods must be
// non-blocking; *influxdb.Client satisfies it.
type Telemetry interface {
	WriteDeliveryOutcome(deviceID, kind, channel string, succeeded bool)
	WriteBatchResult(kind string, sent, failed int)
}

// Result is the aggregate outcome of one fan-out send. Partial failure is
// not an error: Success means at least one device received the message.
type Result struct {
	Success bool
	SentTo  []string
	Errors  []string

	// Queued reports that no device was connected and the message was
	// placed on the offline retry queue instead.
	Queued bool
}

// outcome is one device's delivery result inside a fan-out.
type outcome struct {
	deviceID string
	channel  string
	err      error
}

// Dispatcher converts logical payloads into normalized messages and
// fans them out to every connected device through an ordered chain of
// delivery strategies. Per-device outcomes are isolated: no device's
// failure cancels or masks another's attempt.
type Dispatcher struct {
	presence   Presence
	strategies []Strategy
	queue      *retryQueue
	logger     Logger
	telemetry  Telemetry
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize bounds the offline retry queue.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.queue = newRetryQueue(n) }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTelemetry attaches a delivery outcome sink.
func WithTelemetry(t Telemetry) DispatcherOption {
	return func(d *Dispatcher) { d.telemetry = t }
}

// NewDispatcher creates a dispatcher over an ordered strategy chain.
// Strategies are tried in the order given; the first success per device
// ends that device's chain.
func NewDispatcher(presence Presence, strategies []Strategy, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		presence:   presence,
		strategies: strategies,
		queue:      newRetryQueue(defaultQueueSize),
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendToAll delivers one message to every currently connected device.
//
// The connected set is read once at entry; devices connecting mid-call
// are not included. Attempts run concurrently and the call returns only
// after all complete. Every device in the snapshot yields exactly one
// entry in SentTo or Errors.
//
// With no connected devices the message is queued for retry and the
// result carries Queued=true.
func (d *Dispatcher) SendToAll(ctx context.Context, msg Message) Result {
	targets := d.presence.Connected()
	if len(targets) == 0 {
		if evicted := d.queue.push(msg); evicted {
			d.logger.Warn("offline queue full, dropped oldest message")
		}
		d.logger.Info("no connected devices, message queued",
			"kind", msg.Kind, "messageId", msg.MessageID, "queued", d.queue.len())
		return Result{Queued: true}
	}

	outcomes := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target device.Connection) {
			defer wg.Done()
			outcomes[i] = d.deliverChain(ctx, target, msg)
		}(i, target)
	}
	wg.Wait()

	var result Result
	for _, o := range outcomes {
		if o.err == nil {
			result.SentTo = append(result.SentTo, o.deviceID)
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", o.deviceID, o.err))
		}
		if d.telemetry != nil {
			d.telemetry.WriteDeliveryOutcome(o.deviceID, string(msg.Kind), o.channel, o.err == nil)
		}
	}
	result.Success = len(result.SentTo) > 0

	if d.telemetry != nil {
		d.telemetry.WriteBatchResult(string(msg.Kind), len(result.SentTo), len(result.Errors))
	}
	d.logger.Info("dispatch complete",
		"kind", msg.Kind, "messageId", msg.MessageID,
		"sent", len(result.SentTo), "failed", len(result.Errors))

	return result
}

// SendToDevice delivers one message to a single named device through the
// strategy chain.
//
// Returns:
//   - error: device.ErrNotFound for an unknown name, ErrDeviceUnreachable
//     when the device is offline or every channel failed
func (d *Dispatcher) SendToDevice(ctx context.Context, deviceName string, msg Message) error {
	target, err := d.presence.GetByName(deviceName)
	if err != nil {
		return err
	}
	if !target.Connected {
		return fmt.Errorf("%w: %s is offline", ErrDeviceUnreachable, deviceName)
	}

	o := d.deliverChain(ctx, target, msg)
	if d.telemetry != nil {
		d.telemetry.WriteDeliveryOutcome(o.deviceID, string(msg.Kind), o.channel, o.err == nil)
	}
	return o.err
}

// deliverChain tries each strategy in order until one delivers. When all
// fail, the device is unreachable: there is no simulated success path.
func (d *Dispatcher) deliverChain(ctx context.Context, target device.Connection, msg Message) outcome {
	var reasons []string
	for _, s := range d.strategies {
		err := s.Deliver(ctx, target, msg)
		if err == nil {
			d.logger.Debug("delivered",
				"device", target.ID, "channel", s.Name(), "messageId", msg.MessageID)
			return outcome{deviceID: target.ID, channel: s.Name()}
		}
		d.logger.Debug("delivery attempt failed",
			"device", target.ID, "channel", s.Name(), "error", err)
		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
	}

	return outcome{
		deviceID: target.ID,
		channel:  "none",
		err: fmt.Errorf("%w: all channels failed (%s)",
			ErrDeviceUnreachable, joinReasons(reasons)),
	}
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "no delivery channels configured"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}

// SendText normalizes and fans out a plain text message.
func (d *Dispatcher) SendText(ctx context.Context, content string) (Result, error) {
	msg, err := NewText(content)
	if err != nil {
		return Result{}, err
	}
	return d.SendToAll(ctx, msg), nil
}

// SendPixelArt normalizes and fans out a pixel-art message.
func (d *Dispatcher) SendPixelArt(ctx context.Context, content string, meta PixelArtMeta) (Result, error) {
	msg, err := NewPixelArt(content, meta)
	if err != nil {
		return Result{}, err
	}
	return d.SendToAll(ctx, msg), nil
}

// SendPixelAnimation normalizes and fans out a pixel-animation message.
func (d *Dispatcher) SendPixelAnimation(ctx context.Context, content string, meta AnimationMeta) (Result, error) {
	msg, err := NewPixelAnimation(content, meta)
	if err != nil {
		return Result{}, err
	}
	return d.SendToAll(ctx, msg), nil
}

// SendGIF normalizes and fans out a GIF message.
func (d *Dispatcher) SendGIF(ctx context.Context, content string, meta GIFMeta) (Result, error) {
	msg, err := NewGIF(content, meta)
	if err != nil {
		return Result{}, err
	}
	return d.SendToAll(ctx, msg), nil
}

// QueuedCount reports how many messages await a device coming online.
func (d *Dispatcher) QueuedCount() int {
	return d.queue.len()
}

// Run consumes presence events and flushes the offline queue whenever a
// device comes online. It returns when ctx is cancelled or the event
// channel closes. Callers run it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context, events <-chan device.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != device.EventOnline {
				continue
			}
			d.flushQueue(ctx)
		}
	}
}

// flushQueue replays queued messages now that a device is online. Replays
// that still find no connected device are re-queued by SendToAll.
func (d *Dispatcher) flushQueue(ctx context.Context) {
	pending := d.queue.drain()
	if len(pending) == 0 {
		return
	}

	d.logger.Info("flushing offline queue", "count", len(pending))
	for _, msg := range pending {
		if ctx.Err() != nil {
			return
		}
		d.SendToAll(ctx, msg)
	}
}
