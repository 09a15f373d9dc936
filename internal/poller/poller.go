package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AIO-2030/alaya-ai-chat-nexus-sub002/internal/device"
)

// StatusQuerier answers live-status questions for single devices.
// *rpc.Client satisfies it.
type StatusQuerier interface {
	GetDeviceStatus(ctx context.Context, deviceName string) (bool, error)
}

// Presence is the aggregator surface the poller needs: the device list to
// poll and the merge entry point for answers.
type Presence interface {
	All() []device.Connection
	MergeRPCStatus(ctx context.Context, deviceName string, online bool)
}

// Logger defines the logging interface used by the poller.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Poller periodically refreshes live device status through the command
// channel.
//
// Each tick queries every known device concurrently and merges successful
// answers only; a failed query leaves that device's cached state alone.
// Ticks that fire while the previous tick's queries are still in flight
// are skipped, bounding concurrency to one round at a time.
type Poller struct {
	querier  StatusQuerier
	presence Presence
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	inFlight atomic.Bool
	rounds   sync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the poller's logger.
func WithLogger(logger Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// New creates a poller. Start begins ticking.
func New(querier StatusQuerier, presence Presence, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		querier:  querier,
		presence: presence,
		interval: interval,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop. Calling Start on a running poller is
// a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx, p.done)
}

// Stop halts the loop and waits for it to exit. After Stop returns, no
// further merges originate from this poller. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	<-done
	p.rounds.Wait()
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one polling round. Rounds are skipped, not queued, when the
// previous round has not finished.
func (p *Poller) tick(ctx context.Context) {
	devices := p.presence.All()
	if len(devices) == 0 {
		return
	}

	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("previous polling round still in flight, skipping tick")
		return
	}

	p.rounds.Add(1)
	go func() {
		defer p.rounds.Done()
		defer p.inFlight.Store(false)
		p.pollRound(ctx, devices)
	}()
}

// pollRound queries every device concurrently and merges successful
// answers. Answers arriving after cancellation are discarded.
func (p *Poller) pollRound(ctx context.Context, devices []device.Connection) {
	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Add(1)
		go func(d device.Connection) {
			defer wg.Done()

			online, err := p.querier.GetDeviceStatus(ctx, d.DisplayName)
			if err != nil {
				// No information: cached state stays as it was.
				p.logger.Debug("status query failed",
					"device", d.DisplayName, "error", err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			p.presence.MergeRPCStatus(ctx, d.DisplayName, online)
		}(d)
	}
	wg.Wait()
}
