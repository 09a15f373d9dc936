package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/dispatch"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/registry"
)

// Logger defines the logging interface used by the service.
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

// RegistryClient lists devices from the authoritative backend registry.
// *registry.Client satisfies it.
type RegistryClient interface {
	DeviceList(ctx context.Context) ([]registry.Record, error)
}

// Transport is the broker lifecycle surface the service drives.
// *broker.Broker satisfies it.
type Transport interface {
	Connect() error
	SubscribeAllDevices() error
	IsConnected() bool
	Close() error
}

// StatusPoller is the polling loop lifecycle. *poller.Poller satisfies it.
type StatusPoller interface {
	Start(ctx context.Context)
	Stop()
}

// Telemetry receives presence transition measurements. All methods must
// be non-blocking; *influxdb.Client satisfies it.
type Telemetry interface {
	WritePresenceEvent(deviceID string, connected bool, source string)
}

// Deps are the service's constructor-injected collaborators. Aggregator
// and Dispatcher are required; Registry, Transport, Poller and Telemetry
// may be nil when the deployment does without them.
type Deps struct {
	Registry   RegistryClient
	Transport  Transport
	Aggregator *device.Aggregator
	Dispatcher *dispatch.Dispatcher
	Poller     StatusPoller
	Telemetry  Telemetry
	Logger     Logger
}

// Service is the device connectivity core: a single component tying the
// presence aggregator, broker transport, command channel dispatch and
// status polling together behind an explicit lifecycle.
//
// Operations other than Initialize fail with ErrNotInitialized until
// Initialize has succeeded. Dispose tears everything down; the service
// is not reusable afterwards.
type Service struct {
	deps   Deps
	logger Logger

	mu          sync.Mutex
	initialized bool
	disposed    bool
	cancel      context.CancelFunc
	unwatch     []func()
	wg          sync.WaitGroup
}

// New creates the service. Nothing starts until Initialize.
func New(deps Deps) (*Service, error) {
	if deps.Aggregator == nil {
		return nil, fmt.Errorf("core: aggregator is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("core: dispatcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{deps: deps, logger: logger}, nil
}

// Initialize brings the core up:
//
//  1. Seeds the presence map from the local cache (stale, all offline).
//  2. Syncs the device list from the registry. Registry downtime is not
//     fatal; the cache-seeded map carries until the next refresh.
//  3. Connects the broker transport and subscribes to all device topics.
//  4. Starts the offline-queue flusher, presence telemetry and the
//     status polling loop.
//
// Initialize is idempotent: a second call on an initialized service is a
// no-op.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return fmt.Errorf("core: service disposed")
	}
	if s.initialized {
		return nil
	}

	if n := s.deps.Aggregator.SeedFromCache(ctx); n > 0 {
		s.logger.Info("presence map seeded from cache", "devices", n)
	}

	if err := s.refreshDevices(ctx); err != nil {
		s.logger.Warn("registry sync failed, continuing with cached devices", "error", err)
	}

	if s.deps.Transport != nil {
		if err := s.deps.Transport.Connect(); err != nil {
			return fmt.Errorf("connecting broker transport: %w", err)
		}
		if err := s.deps.Transport.SubscribeAllDevices(); err != nil {
			s.logger.Warn("device subscriptions failed, will retry on reconnect", "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	flushEvents, unwatchFlush := s.deps.Aggregator.Watch()
	s.unwatch = append(s.unwatch, unwatchFlush)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deps.Dispatcher.Run(runCtx, flushEvents)
	}()

	if s.deps.Telemetry != nil {
		telemetryEvents, unwatchTelemetry := s.deps.Aggregator.Watch()
		s.unwatch = append(s.unwatch, unwatchTelemetry)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.recordPresence(runCtx, telemetryEvents)
		}()
	}

	if s.deps.Poller != nil {
		s.deps.Poller.Start(runCtx)
	}

	s.initialized = true
	s.logger.Info("device connectivity core initialized")
	return nil
}

// recordPresence forwards presence transitions to the telemetry sink.
func (s *Service) recordPresence(ctx context.Context, events <-chan device.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.deps.Telemetry.WritePresenceEvent(
				ev.Device.ID, ev.Type == device.EventOnline, string(ev.Device.Source))
		}
	}
}

// Dispose tears the core down: stops the poller, detaches watchers,
// closes the broker session and waits for internal goroutines. In-flight
// deliveries may still complete or fail after Dispose returns; their
// outcomes are abandoned. Dispose is idempotent.
func (s *Service) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true

	if !s.initialized {
		return
	}
	s.initialized = false

	if s.deps.Poller != nil {
		s.deps.Poller.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	for _, unwatch := range s.unwatch {
		unwatch()
	}
	s.unwatch = nil
	s.wg.Wait()

	if s.deps.Transport != nil {
		if err := s.deps.Transport.Close(); err != nil {
			s.logger.Warn("closing broker transport", "error", err)
		}
	}

	s.logger.Info("device connectivity core disposed")
}

// ready guards operations that require a completed Initialize.
func (s *Service) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// RefreshDevices re-syncs the presence map against the registry's
// current device list.
func (s *Service) RefreshDevices(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.refreshDevices(ctx)
}

// refreshDevices pulls the registry list and reconciles the aggregator.
// Devices are seeded offline; only a live transport marks them online.
func (s *Service) refreshDevices(ctx context.Context) error {
	if s.deps.Registry == nil {
		return nil
	}

	records, err := s.deps.Registry.DeviceList(ctx)
	if err != nil {
		return err
	}

	seeds := make([]device.Connection, 0, len(records))
	for _, rec := range records {
		seeds = append(seeds, device.Connection{
			ID:          rec.ID,
			DisplayName: rec.Name,
		})
	}
	s.deps.Aggregator.SyncFromRegistry(ctx, seeds)

	s.logger.Debug("registry sync complete", "devices", len(seeds))
	return nil
}

// ConnectedDevices returns the devices currently believed online.
func (s *Service) ConnectedDevices() ([]device.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.deps.Aggregator.Connected(), nil
}

// IsAnyDeviceConnected reports whether any device is believed online.
func (s *Service) IsAnyDeviceConnected() (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.deps.Aggregator.IsAnyConnected(), nil
}

// SendText delivers a plain text message to every connected device.
func (s *Service) SendText(ctx context.Context, content string) (dispatch.Result, error) {
	if err := s.ready(); err != nil {
		return dispatch.Result{}, err
	}
	return s.deps.Dispatcher.SendText(ctx, content)
}

// SendPixelArt delivers a pixel-art frame to every connected device.
func (s *Service) SendPixelArt(ctx context.Context, content string, meta dispatch.PixelArtMeta) (dispatch.Result, error) {
	if err := s.ready(); err != nil {
		return dispatch.Result{}, err
	}
	return s.deps.Dispatcher.SendPixelArt(ctx, content, meta)
}

// SendPixelAnimation delivers a pixel animation to every connected device.
func (s *Service) SendPixelAnimation(ctx context.Context, content string, meta dispatch.AnimationMeta) (dispatch.Result, error) {
	if err := s.ready(); err != nil {
		return dispatch.Result{}, err
	}
	return s.deps.Dispatcher.SendPixelAnimation(ctx, content, meta)
}

// SendGIF delivers a GIF to every connected device.
func (s *Service) SendGIF(ctx context.Context, content string, meta dispatch.GIFMeta) (dispatch.Result, error) {
	if err := s.ready(); err != nil {
		return dispatch.Result{}, err
	}
	return s.deps.Dispatcher.SendGIF(ctx, content, meta)
}

// SendToDevice delivers an already-normalized message to one named
// device.
func (s *Service) SendToDevice(ctx context.Context, deviceName string, msg dispatch.Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.deps.Dispatcher.SendToDevice(ctx, deviceName, msg)
}
