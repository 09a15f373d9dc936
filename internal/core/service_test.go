package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/dispatch"
	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/registry"
)

// fakeRegistry serves a fixed device list.
type fakeRegistry struct {
	mu      sync.Mutex
	records []registry.Record
	err     error
	calls   int
}

func (r *fakeRegistry) DeviceList(context.Context) ([]registry.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

// fakeTransport tracks lifecycle calls.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	subscribed bool
	connectErr error
}

func (t *fakeTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		return t.connectErr
	}
	t.connected = true
	return nil
}

func (t *fakeTransport) SubscribeAllDevices() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed = true
	return nil
}

func (t *fakeTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.closed = true
	return nil
}

// fakePoller tracks start/stop.
type fakePoller struct {
	mu      sync.Mutex
	started int
	stopped int
}

func (p *fakePoller) Start(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
}

func (p *fakePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
}

// okStrategy delivers everything.
type okStrategy struct{}

func (okStrategy) Name() string { return "rpc" }
func (okStrategy) Deliver(context.Context, device.Connection, dispatch.Message) error {
	return nil
}

func newTestService(t *testing.T, reg RegistryClient, transport Transport) (*Service, *device.Aggregator) {
	t.Helper()

	agg := device.NewAggregator(device.ModeRPCPrimary)
	disp := dispatch.NewDispatcher(agg, []dispatch.Strategy{okStrategy{}})

	svc, err := New(Deps{
		Registry:   reg,
		Transport:  transport,
		Aggregator: agg,
		Dispatcher: disp,
		Poller:     &fakePoller{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, agg
}

func TestNew_RequiresAggregatorAndDispatcher(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(empty) error = nil, want error")
	}

	agg := device.NewAggregator(device.ModeRPCPrimary)
	if _, err := New(Deps{Aggregator: agg}); err == nil {
		t.Error("New(no dispatcher) error = nil, want error")
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	svc, _ := newTestService(t, &fakeRegistry{}, &fakeTransport{})

	if _, err := svc.SendText(context.Background(), "hi"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SendText() error = %v, want ErrNotInitialized", err)
	}
	if err := svc.RefreshDevices(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RefreshDevices() error = %v, want ErrNotInitialized", err)
	}
	if _, err := svc.ConnectedDevices(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ConnectedDevices() error = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeAndSend(t *testing.T) {
	reg := &fakeRegistry{records: []registry.Record{
		{ID: "dev-1", Name: "mug-kitchen", Status: "active"},
	}}
	transport := &fakeTransport{}
	svc, agg := newTestService(t, reg, transport)
	defer svc.Dispose()

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !transport.IsConnected() {
		t.Error("transport not connected after Initialize")
	}

	// Registry seeds devices offline until a transport confirms.
	online, err := svc.IsAnyDeviceConnected()
	if err != nil {
		t.Fatalf("IsAnyDeviceConnected() error = %v", err)
	}
	if online {
		t.Error("IsAnyDeviceConnected() = true, want false before any live report")
	}

	agg.UpdateFromBroker(context.Background(), "mug-kitchen", true)

	result, err := svc.SendText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if !result.Success || len(result.SentTo) != 1 || result.SentTo[0] != "dev-1" {
		t.Errorf("result = %+v, want delivery to dev-1", result)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	reg := &fakeRegistry{}
	svc, _ := newTestService(t, reg, &fakeTransport{})
	defer svc.Dispose()

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() second call error = %v", err)
	}

	reg.mu.Lock()
	calls := reg.calls
	reg.mu.Unlock()
	if calls != 1 {
		t.Errorf("registry calls = %d, want 1 (second Initialize is a no-op)", calls)
	}
}

func TestInitializeSurvivesRegistryDowntime(t *testing.T) {
	reg := &fakeRegistry{err: registry.ErrUnavailable}
	svc, _ := newTestService(t, reg, &fakeTransport{})
	defer svc.Dispose()

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v, want registry downtime tolerated", err)
	}
}

func TestInitializeFailsOnTransport(t *testing.T) {
	transport := &fakeTransport{connectErr: errors.New("broker unreachable")}
	svc, _ := newTestService(t, &fakeRegistry{}, transport)

	if err := svc.Initialize(context.Background()); err == nil {
		t.Error("Initialize() error = nil, want transport failure surfaced")
	}

	// A failed Initialize leaves the service uninitialized.
	if _, err := svc.SendText(context.Background(), "hi"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SendText() error = %v, want ErrNotInitialized", err)
	}
}

func TestRefreshDevices(t *testing.T) {
	reg := &fakeRegistry{records: []registry.Record{
		{ID: "dev-1", Name: "mug-kitchen"},
	}}
	svc, agg := newTestService(t, reg, &fakeTransport{})
	defer svc.Dispose()

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	reg.mu.Lock()
	reg.records = []registry.Record{
		{ID: "dev-2", Name: "mug-office"},
	}
	reg.mu.Unlock()

	if err := svc.RefreshDevices(context.Background()); err != nil {
		t.Fatalf("RefreshDevices() error = %v", err)
	}

	if _, err := agg.GetByID("dev-1"); !errors.Is(err, device.ErrNotFound) {
		t.Errorf("dev-1 still present after registry removal, error = %v", err)
	}
	if _, err := agg.GetByID("dev-2"); err != nil {
		t.Errorf("GetByID(dev-2) error = %v", err)
	}
}

func TestDispose(t *testing.T) {
	transport := &fakeTransport{}
	pol := &fakePoller{}

	agg := device.NewAggregator(device.ModeRPCPrimary)
	disp := dispatch.NewDispatcher(agg, []dispatch.Strategy{okStrategy{}})
	svc, err := New(Deps{
		Registry:   &fakeRegistry{},
		Transport:  transport,
		Aggregator: agg,
		Dispatcher: disp,
		Poller:     pol,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	svc.Dispose()
	svc.Dispose() // Idempotent

	transport.mu.Lock()
	closed := transport.closed
	transport.mu.Unlock()
	if !closed {
		t.Error("transport not closed after Dispose")
	}

	pol.mu.Lock()
	stopped := pol.stopped
	pol.mu.Unlock()
	if stopped != 1 {
		t.Errorf("poller stops = %d, want 1", stopped)
	}

	if _, err := svc.SendText(context.Background(), "hi"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SendText() after Dispose error = %v, want ErrNotInitialized", err)
	}

	if err := svc.Initialize(context.Background()); err == nil {
		t.Error("Initialize() after Dispose = nil, want error")
	}
}

func TestOfflineQueueFlushOnPresenceEvent(t *testing.T) {
	svc, agg := newTestService(t, &fakeRegistry{}, &fakeTransport{})
	defer svc.Dispose()

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	result, err := svc.SendText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if !result.Queued {
		t.Fatalf("result = %+v, want message queued with no devices", result)
	}

	agg.UpdateFromBroker(context.Background(), "mug-kitchen", true)

	deadline := time.After(2 * time.Second)
	for {
		devices, err := svc.ConnectedDevices()
		if err != nil {
			t.Fatalf("ConnectedDevices() error = %v", err)
		}
		if len(devices) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("device never observed online")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
