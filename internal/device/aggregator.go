package device

import (
	"context"
	"sync"
	"time"
)

// Logger defines the logging interface used by the aggregator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// watchBufferSize bounds each watcher channel. Slow watchers drop events
// rather than stalling merges.
const watchBufferSize = 16

// Aggregator maintains the unified presence map: one Connection per device,
// merged from the registry, broker status messages and command channel
// status answers.
//
// All public methods are thread-safe. Merge methods never block on watchers
// and never fail because the cache repository is unavailable.
type Aggregator struct {
	mode MergeMode

	mu      sync.RWMutex
	devices map[string]*Connection // Keyed by device ID
	byName  map[string]string      // DisplayName -> ID

	watchMu  sync.Mutex
	watchers map[int]chan Event
	watchSeq int

	repo   Repository // Optional persistence, may be nil
	logger Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithRepository attaches a persistence layer. Writes are best effort:
// failures are logged and the in-memory map stays authoritative.
func WithRepository(repo Repository) AggregatorOption {
	return func(a *Aggregator) { a.repo = repo }
}

// WithLogger sets the aggregator's logger.
func WithLogger(logger Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = logger }
}

// NewAggregator creates a presence aggregator with the given merge mode.
func NewAggregator(mode MergeMode, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		mode:     mode,
		devices:  make(map[string]*Connection),
		byName:   make(map[string]string),
		watchers: make(map[int]chan Event),
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode returns the configured merge mode.
func (a *Aggregator) Mode() MergeMode {
	return a.mode
}

// SeedFromCache loads persisted presence rows into an empty map. Cached
// rows are a stale hint, so every device is marked disconnected until a
// live source reports otherwise.
//
// Returns the number of devices seeded. A missing or failing repository
// is not an error; startup proceeds with an empty map.
func (a *Aggregator) SeedFromCache(ctx context.Context) int {
	if a.repo == nil {
		return 0
	}

	cached, err := a.repo.List(ctx)
	if err != nil {
		a.logger.Warn("presence cache unavailable, starting empty", "error", err)
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range cached {
		c := cached[i]
		c.Connected = false
		a.devices[c.ID] = &c
		a.byName[c.DisplayName] = c.ID
	}

	return len(cached)
}

// SyncFromRegistry reconciles the presence map against the registry's
// device list. The registry is authoritative for which devices exist:
// unknown devices are added, devices it no longer lists are removed.
//
// For devices already tracked, only identity is updated; the registry's
// own status never overrides liveness learned from the broker or the
// command channel.
func (a *Aggregator) SyncFromRegistry(ctx context.Context, records []Connection) {
	a.mu.Lock()

	listed := make(map[string]bool, len(records))
	var events []Event

	for i := range records {
		rec := records[i]
		listed[rec.ID] = true

		existing, ok := a.devices[rec.ID]
		if !ok {
			c := Connection{
				ID:          rec.ID,
				DisplayName: rec.DisplayName,
				Connected:   rec.Connected,
				LastSeen:    time.Now(),
				Source:      SourceRegistry,
			}
			// A broker or command channel report can arrive before the
			// registry lists the device, leaving a name-keyed placeholder
			// entry. Fold its live state into the registry record so
			// liveness learned early survives the sync.
			if placeholderID, known := a.byName[rec.DisplayName]; known && placeholderID != rec.ID {
				if placeholder := a.devices[placeholderID]; placeholder != nil {
					c.Connected = placeholder.Connected
					c.LastSeen = placeholder.LastSeen
					c.Source = placeholder.Source
					delete(a.devices, placeholderID)
					a.unpersist(ctx, placeholderID)
				}
			}
			a.devices[rec.ID] = &c
			a.byName[rec.DisplayName] = rec.ID
			if c.Connected {
				events = append(events, Event{Type: EventOnline, Device: c})
			}
			a.persist(ctx, c)
			continue
		}

		if existing.DisplayName != rec.DisplayName {
			if a.byName[existing.DisplayName] == rec.ID {
				delete(a.byName, existing.DisplayName)
			}
			existing.DisplayName = rec.DisplayName
			a.byName[rec.DisplayName] = rec.ID
			a.persist(ctx, *existing)
		}
	}

	for id, conn := range a.devices {
		if listed[id] {
			continue
		}
		if conn.Connected {
			events = append(events, Event{Type: EventOffline, Device: *conn})
		}
		// The name mapping may already point at another entry sharing
		// this display name; only remove it if it is still ours.
		if a.byName[conn.DisplayName] == id {
			delete(a.byName, conn.DisplayName)
		}
		delete(a.devices, id)
		a.unpersist(ctx, id)
	}

	a.mu.Unlock()
	a.emit(events)
}

// MergeBrokerSnapshot applies a full broker status snapshot.
//
// Devices named in the snapshot are updated in both modes. Devices absent
// from it are removed only under ModeBrokerPrimary; under ModeRPCPrimary
// absence carries no information and tracked state is left alone.
func (a *Aggregator) MergeBrokerSnapshot(ctx context.Context, reports []StatusReport) {
	a.mu.Lock()

	seen := make(map[string]bool, len(reports))
	var events []Event

	for _, rep := range reports {
		id := a.applyLocked(ctx, rep.DeviceName, rep.Connected, SourceBroker, &events)
		seen[id] = true
	}

	if a.mode == ModeBrokerPrimary {
		for id, conn := range a.devices {
			if seen[id] {
				continue
			}
			if conn.Connected {
				events = append(events, Event{Type: EventOffline, Device: *conn})
			}
			if a.byName[conn.DisplayName] == id {
				delete(a.byName, conn.DisplayName)
			}
			delete(a.devices, id)
			a.unpersist(ctx, id)
		}
	}

	a.mu.Unlock()
	a.emit(events)
}

// UpdateFromBroker applies a single broker status message for one device.
// Unlike a snapshot, a single message never implies anything about other
// devices, so no removals happen in either mode.
func (a *Aggregator) UpdateFromBroker(ctx context.Context, deviceName string, connected bool) {
	a.mu.Lock()
	var events []Event
	a.applyLocked(ctx, deviceName, connected, SourceBroker, &events)
	a.mu.Unlock()
	a.emit(events)
}

// MergeRPCStatus applies a command channel status answer for one device.
//
// Callers must invoke this only on a successful query: a failed query
// means no information, and the tracked state must stay untouched.
func (a *Aggregator) MergeRPCStatus(ctx context.Context, deviceName string, online bool) {
	a.mu.Lock()
	var events []Event
	a.applyLocked(ctx, deviceName, online, SourceRPC, &events)
	a.mu.Unlock()
	a.emit(events)
}

// applyLocked updates (or creates) one device's presence entry and appends
// a transition event when Connected flips. Caller holds mu. Returns the
// device ID the name resolved to.
func (a *Aggregator) applyLocked(ctx context.Context, deviceName string, connected bool, source Source, events *[]Event) string {
	id, ok := a.byName[deviceName]
	if !ok {
		// First sighting of a device the registry hasn't told us about.
		id = deviceName
		c := Connection{
			ID:          id,
			DisplayName: deviceName,
			Connected:   connected,
			LastSeen:    time.Now(),
			Source:      source,
		}
		a.devices[id] = &c
		a.byName[deviceName] = id
		if connected {
			*events = append(*events, Event{Type: EventOnline, Device: c})
		}
		a.persist(ctx, c)
		return id
	}

	conn := a.devices[id]
	transition := conn.Connected != connected
	conn.Connected = connected
	conn.LastSeen = time.Now()
	conn.Source = source

	if transition {
		typ := EventOffline
		if connected {
			typ = EventOnline
		}
		*events = append(*events, Event{Type: typ, Device: *conn})
	}
	a.persist(ctx, *conn)
	return id
}

// GetByID returns a copy of one device's presence entry.
func (a *Aggregator) GetByID(id string) (Connection, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	conn, ok := a.devices[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return *conn, nil
}

// GetByName returns a copy of one device's presence entry, looked up by
// display name.
func (a *Aggregator) GetByName(name string) (Connection, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	id, ok := a.byName[name]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return *a.devices[id], nil
}

// All returns a copy of every tracked device.
func (a *Aggregator) All() []Connection {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Connection, 0, len(a.devices))
	for _, conn := range a.devices {
		out = append(out, *conn)
	}
	return out
}

// Connected returns a copy of every device currently believed online.
func (a *Aggregator) Connected() []Connection {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Connection, 0, len(a.devices))
	for _, conn := range a.devices {
		if conn.Connected {
			out = append(out, *conn)
		}
	}
	return out
}

// IsAnyConnected reports whether at least one device is believed online.
func (a *Aggregator) IsAnyConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, conn := range a.devices {
		if conn.Connected {
			return true
		}
	}
	return false
}

// Watch registers a presence event subscriber.
//
// Returns:
//   - <-chan Event: Buffered channel of online/offline transitions. Events
//     are dropped, not queued unboundedly, if the watcher falls behind.
//   - func(): Unsubscribe. Safe to call more than once; the channel is
//     closed on first call.
func (a *Aggregator) Watch() (<-chan Event, func()) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	id := a.watchSeq
	a.watchSeq++

	ch := make(chan Event, watchBufferSize)
	a.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.watchMu.Lock()
			delete(a.watchers, id)
			a.watchMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// emit fans transition events out to all watchers without blocking.
func (a *Aggregator) emit(events []Event) {
	if len(events) == 0 {
		return
	}

	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for _, ev := range events {
		for _, ch := range a.watchers {
			select {
			case ch <- ev:
			default:
				a.logger.Debug("presence watcher full, dropping event",
					"device", ev.Device.ID, "type", ev.Type)
			}
		}
	}
}

// persist writes one entry to the cache repository, best effort.
// Caller holds mu.
func (a *Aggregator) persist(ctx context.Context, c Connection) {
	if a.repo == nil {
		return
	}
	if err := a.repo.Save(ctx, c); err != nil {
		a.logger.Warn("persisting presence entry failed", "device", c.ID, "error", err)
	}
}

// unpersist removes one entry from the cache repository, best effort.
// Caller holds mu.
func (a *Aggregator) unpersist(ctx context.Context, id string) {
	if a.repo == nil {
		return
	}
	if err := a.repo.Delete(ctx, id); err != nil {
		a.logger.Warn("removing presence entry failed", "device", id, "error", err)
	}
}
