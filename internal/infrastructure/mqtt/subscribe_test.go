package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken satisfies pahomqtt.Token with an immediate result.
type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakePaho records Subscribe calls, failing the first ones with errs.
// Only the methods the tests exercise are implemented.
type fakePaho struct {
	pahomqtt.Client

	mu         sync.Mutex
	subscribed []string
	errs       []error
}

func (f *fakePaho) IsConnected() bool { return true }

func (f *fakePaho) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	return &fakeToken{err: err}
}

func (f *fakePaho) subscribeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func TestSubscribe_FailureRetriedOnReconnect(t *testing.T) {
	paho := &fakePaho{errs: []error{errors.New("broker refused")}}
	c := &Client{
		client:        paho,
		connected:     true,
		subscriptions: make(map[string]subscription),
	}

	err := c.Subscribe("status/MUG01ABC/+", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}

	// The failed subscription stays tracked; without it a reconnect
	// could never restore the topic.
	if !c.HasSubscription("status/MUG01ABC/+") {
		t.Fatal("failed subscription not tracked for restore")
	}

	c.restoreSubscriptions()

	calls := paho.subscribeCalls()
	if len(calls) != 2 {
		t.Fatalf("broker Subscribe calls = %d, want 2 (initial attempt plus restore)", len(calls))
	}
	if calls[1] != "status/MUG01ABC/+" {
		t.Errorf("restored topic = %q, want %q", calls[1], "status/MUG01ABC/+")
	}
}

func TestRestoreSubscriptions_ReplaysAllTracked(t *testing.T) {
	paho := &fakePaho{}
	c := &Client{
		client:        paho,
		connected:     true,
		subscriptions: make(map[string]subscription),
	}

	handler := func(string, []byte) error { return nil }
	topics := []string{"status/MUG01ABC/+", "property/MUG01ABC/+"}
	for _, topic := range topics {
		if err := c.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%q) error = %v", topic, err)
		}
	}

	c.restoreSubscriptions()

	if got := len(paho.subscribeCalls()); got != 2*len(topics) {
		t.Errorf("broker Subscribe calls = %d, want %d", got, 2*len(topics))
	}
}
