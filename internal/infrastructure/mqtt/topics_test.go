package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceStatus", topics.DeviceStatus("MUG01ABC", "mug-kitchen"), "status/MUG01ABC/mug-kitchen"},
		{"DeviceProperty", topics.DeviceProperty("MUG01ABC", "mug-kitchen"), "property/MUG01ABC/mug-kitchen"},
		{"DeviceCommand", topics.DeviceCommand("MUG01ABC", "dev-42"), "down/property/MUG01ABC/dev-42"},
		{"AllDeviceStatus", topics.AllDeviceStatus("MUG01ABC"), "status/MUG01ABC/+"},
		{"AllDeviceProperty", topics.AllDeviceProperty("MUG01ABC"), "property/MUG01ABC/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	// A zero-value client is never connected; validation errors must
	// surface before any connection state is consulted.
	c := &Client{}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("Publish(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("Publish(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("t", []byte("x"), 1, false); err != ErrNotConnected {
		t.Errorf("Publish(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 1, nil); err == nil {
		t.Error("Subscribe(nil handler) expected error")
	}
	if err := c.Subscribe("t", 1, func(string, []byte) error { return nil }); err != ErrNotConnected {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", c.SubscriptionCount())
	}
}
