package device

import "time"

// Source identifies which channel last reported a device's connection state.
type Source string

// Presence sources, in rough order of trustworthiness for liveness.
const (
	// SourceRegistry is the backend registry record. It seeds the map but
	// says nothing about the live connection.
	SourceRegistry Source = "registry"

	// SourceBroker is a retained status message or snapshot from the
	// message broker.
	SourceBroker Source = "broker"

	// SourceRPC is a get-device-status answer from the command channel.
	SourceRPC Source = "rpc"
)

// MergeMode selects how broker snapshots interact with state learned from
// other sources.
type MergeMode string

const (
	// ModeBrokerPrimary treats a broker snapshot as authoritative: devices
	// absent from the snapshot are removed from the presence map.
	ModeBrokerPrimary MergeMode = "broker_primary"

	// ModeRPCPrimary treats broker snapshots as additive only: absence
	// from a snapshot never downgrades or removes a device, so command
	// channel answers win on disagreement.
	ModeRPCPrimary MergeMode = "rpc_primary"
)

// Connection is the tracked presence state of one device.
type Connection struct {
	// ID is the stable device identifier from the registry.
	ID string

	// DisplayName is the human-readable device name, also used as the
	// deviceName segment in broker topics and command channel params.
	DisplayName string

	// Connected reports whether the device is believed online.
	Connected bool

	// LastSeen is when any source last reported on this device.
	LastSeen time.Time

	// Source is the channel that produced the current Connected value.
	Source Source
}

// EventType classifies a presence change.
type EventType string

const (
	// EventOnline fires when a device transitions to connected.
	EventOnline EventType = "online"

	// EventOffline fires when a device transitions to disconnected or is
	// removed from the presence map.
	EventOffline EventType = "offline"
)

// Event is a presence transition delivered to watchers.
type Event struct {
	Type   EventType
	Device Connection
}

// StatusReport is one device's state as reported by a presence source.
type StatusReport struct {
	DeviceName string
	Connected  bool
}
