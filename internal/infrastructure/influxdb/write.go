package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePresenceEvent records a device presence transition.
//
// Called by the service when the aggregator reports a device coming
// online or going offline. The write is non-blocking; data is batched
// and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device
//   - connected: New connection state
//   - source: Which path observed the transition ("registry", "broker", "rpc")
func (c *Client) WritePresenceEvent(deviceID string, connected bool, source string) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if connected {
		state = 1
	}

	point := write.NewPoint(
		"device_presence",
		map[string]string{
			"device_id": deviceID,
			"source":    source,
		},
		map[string]interface{}{
			"connected": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeliveryOutcome records the result of one delivery attempt chain
// for one device.
//
// Parameters:
//   - deviceID: Device the message was addressed to
//   - kind: Message kind ("text", "pixel_art", "gif", "pixel_animation")
//   - channel: The channel that succeeded ("rpc", "broker"), or "none"
//   - succeeded: Whether any channel delivered the message
func (c *Client) WriteDeliveryOutcome(deviceID, kind, channel string, succeeded bool) {
	if !c.IsConnected() {
		return
	}

	ok := 0
	if succeeded {
		ok = 1
	}

	point := write.NewPoint(
		"delivery_outcome",
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
			"channel":   channel,
		},
		map[string]interface{}{
			"succeeded": ok,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBatchResult records the aggregate outcome of one fan-out call.
//
// Parameters:
//   - kind: Message kind dispatched
//   - sent: Number of devices that received the message
//   - failed: Number of devices where every channel failed
func (c *Client) WriteBatchResult(kind string, sent, failed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatch_batch",
		map[string]string{
			"kind": kind,
		},
		map[string]interface{}{
			"sent":   sent,
			"failed": failed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
