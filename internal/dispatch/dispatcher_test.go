package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
)

// fakePresence serves a fixed device set.
type fakePresence struct {
	mu      sync.Mutex
	devices []device.Connection
}

func (p *fakePresence) Connected() []device.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []device.Connection
	for _, d := range p.devices {
		if d.Connected {
			out = append(out, d)
		}
	}
	return out
}

func (p *fakePresence) GetByName(name string) (device.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range p.devices {
		if d.DisplayName == name {
			return d, nil
		}
	}
	return device.Connection{}, device.ErrNotFound
}

func (p *fakePresence) set(devices []device.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
}

// fakeStrategy fails for device IDs in failFor and counts deliveries.
type fakeStrategy struct {
	name    string
	failFor map[string]bool

	mu        sync.Mutex
	delivered []string
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Deliver(_ context.Context, target device.Connection, _ Message) error {
	if s.failFor[target.ID] {
		return fmt.Errorf("connection refused for %s", target.ID)
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, target.ID)
	s.mu.Unlock()
	return nil
}

func (s *fakeStrategy) deliveredTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func online(id, name string) device.Connection {
	return device.Connection{ID: id, DisplayName: name, Connected: true}
}

func mustText(t *testing.T, content string) Message {
	t.Helper()
	msg, err := NewText(content)
	if err != nil {
		t.Fatalf("NewText() error = %v", err)
	}
	return msg
}

func TestSendToAll_Completeness(t *testing.T) {
	presence := &fakePresence{devices: []device.Connection{
		online("dev-1", "mug-kitchen"),
		online("dev-2", "mug-office"),
		online("dev-3", "mug-garage"),
	}}
	primary := &fakeStrategy{name: "rpc", failFor: map[string]bool{"dev-2": true}}
	secondary := &fakeStrategy{name: "broker", failFor: map[string]bool{"dev-2": true}}

	d := NewDispatcher(presence, []Strategy{primary, secondary})

	result := d.SendToAll(context.Background(), mustText(t, "hello"))

	if got := len(result.SentTo) + len(result.Errors); got != 3 {
		t.Errorf("sentTo+errors = %d, want 3 (one outcome per device)", got)
	}
	if !result.Success {
		t.Error("Success = false, want true with partial delivery")
	}
}

func TestSendToAll_PartialFailure(t *testing.T) {
	presence := &fakePresence{devices: []device.Connection{
		online("dev-a", "mug-a"),
		online("dev-b", "mug-b"),
	}}
	// Both channels fail for dev-b only.
	primary := &fakeStrategy{name: "rpc", failFor: map[string]bool{"dev-b": true}}
	secondary := &fakeStrategy{name: "broker", failFor: map[string]bool{"dev-b": true}}

	d := NewDispatcher(presence, []Strategy{primary, secondary})

	result := d.SendToAll(context.Background(), mustText(t, "hello"))

	if !result.Success {
		t.Error("Success = false, want true (dev-a delivered)")
	}
	if len(result.SentTo) != 1 || result.SentTo[0] != "dev-a" {
		t.Errorf("SentTo = %v, want [dev-a]", result.SentTo)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "dev-b:") {
		t.Errorf("Errors = %v, want one entry for dev-b", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "unreachable") {
		t.Errorf("Errors[0] = %q, want unreachable reason", result.Errors[0])
	}
}

func TestSendToAll_FallbackOrder(t *testing.T) {
	presence := &fakePresence{devices: []device.Connection{online("dev-1", "mug-kitchen")}}
	primary := &fakeStrategy{name: "rpc", failFor: map[string]bool{"dev-1": true}}
	secondary := &fakeStrategy{name: "broker"}

	d := NewDispatcher(presence, []Strategy{primary, secondary})

	result := d.SendToAll(context.Background(), mustText(t, "hello"))

	if !result.Success {
		t.Fatalf("Success = false, want fallback delivery; errors = %v", result.Errors)
	}
	if got := secondary.deliveredTo(); len(got) != 1 || got[0] != "dev-1" {
		t.Errorf("broker delivered = %v, want [dev-1]", got)
	}
}

func TestSendToAll_PrimaryWins(t *testing.T) {
	presence := &fakePresence{devices: []device.Connection{online("dev-1", "mug-kitchen")}}
	primary := &fakeStrategy{name: "rpc"}
	secondary := &fakeStrategy{name: "broker"}

	d := NewDispatcher(presence, []Strategy{primary, secondary})

	d.SendToAll(context.Background(), mustText(t, "hello"))

	if got := len(secondary.deliveredTo()); got != 0 {
		t.Errorf("broker delivered %d messages, want 0 when primary succeeds", got)
	}
}

func TestSendToAll_NoDevicesQueues(t *testing.T) {
	presence := &fakePresence{}
	d := NewDispatcher(presence, []Strategy{&fakeStrategy{name: "rpc"}})

	result := d.SendToAll(context.Background(), mustText(t, "hello"))

	if !result.Queued {
		t.Error("Queued = false, want true with no connected devices")
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if d.QueuedCount() != 1 {
		t.Errorf("QueuedCount() = %d, want 1", d.QueuedCount())
	}
}

func TestQueueDropsOldest(t *testing.T) {
	presence := &fakePresence{}
	d := NewDispatcher(presence, []Strategy{&fakeStrategy{name: "rpc"}}, WithQueueSize(2))

	for i := 0; i < 3; i++ {
		d.SendToAll(context.Background(), mustText(t, fmt.Sprintf("msg-%d", i)))
	}

	if d.QueuedCount() != 2 {
		t.Fatalf("QueuedCount() = %d, want 2", d.QueuedCount())
	}

	pending := d.queue.drain()
	if pending[0].Content != "msg-1" || pending[1].Content != "msg-2" {
		t.Errorf("queue = [%s, %s], want oldest dropped", pending[0].Content, pending[1].Content)
	}
}

func TestRunFlushesQueueOnOnlineEvent(t *testing.T) {
	presence := &fakePresence{}
	strategy := &fakeStrategy{name: "rpc"}
	d := NewDispatcher(presence, []Strategy{strategy})

	d.SendToAll(context.Background(), mustText(t, "hello"))
	if d.QueuedCount() != 1 {
		t.Fatalf("QueuedCount() = %d, want 1", d.QueuedCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan device.Event, 1)
	done := make(chan struct{})
	go func() {
		d.Run(ctx, events)
		close(done)
	}()

	// Device comes online; the queued message should replay to it.
	presence.set([]device.Connection{online("dev-1", "mug-kitchen")})
	events <- device.Event{Type: device.EventOnline, Device: online("dev-1", "mug-kitchen")}

	deadline := time.After(2 * time.Second)
	for d.QueuedCount() != 0 || len(strategy.deliveredTo()) != 1 {
		select {
		case <-deadline:
			t.Fatalf("queue not flushed: queued=%d delivered=%v",
				d.QueuedCount(), strategy.deliveredTo())
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(events)
	<-done
}

func TestSendToDevice(t *testing.T) {
	presence := &fakePresence{devices: []device.Connection{
		online("dev-1", "mug-kitchen"),
		{ID: "dev-2", DisplayName: "mug-office", Connected: false},
	}}
	strategy := &fakeStrategy{name: "rpc"}
	d := NewDispatcher(presence, []Strategy{strategy})

	if err := d.SendToDevice(context.Background(), "mug-kitchen", mustText(t, "hi")); err != nil {
		t.Errorf("SendToDevice(online) error = %v", err)
	}

	err := d.SendToDevice(context.Background(), "mug-office", mustText(t, "hi"))
	if !errors.Is(err, ErrDeviceUnreachable) {
		t.Errorf("SendToDevice(offline) error = %v, want ErrDeviceUnreachable", err)
	}

	err = d.SendToDevice(context.Background(), "mug-attic", mustText(t, "hi"))
	if !errors.Is(err, device.ErrNotFound) {
		t.Errorf("SendToDevice(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSendText_Invalid(t *testing.T) {
	d := NewDispatcher(&fakePresence{}, nil)

	if _, err := d.SendText(context.Background(), ""); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("SendText(\"\") error = %v, want ErrMalformedMessage", err)
	}
}
