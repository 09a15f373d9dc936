package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Exchange constants.
const (
	// defaultRefreshMargin is how long before expiry a credential is
	// considered stale and refreshed.
	defaultRefreshMargin = 5 * time.Minute

	// exchangeTimeout bounds one round trip to the credential authority.
	exchangeTimeout = 10 * time.Second

	// maxResponseBytes bounds the authority response body.
	maxResponseBytes = 64 * 1024
)

// Credential is a short-lived secret granting access to the cloud broker
// and command APIs. Credentials are immutable once issued; a refresh
// produces a new Credential rather than mutating the old one.
type Credential struct {
	Token        string
	TmpSecretID  string
	TmpSecretKey string
	ExpiresAt    time.Time
}

// ValidFor reports whether the credential is still usable with the given
// safety margin before expiry.
func (c *Credential) ValidFor(margin time.Duration) bool {
	if c == nil {
		return false
	}
	return time.Now().Add(margin).Before(c.ExpiresAt)
}

// IdentityFunc supplies the authenticated caller identity presented to the
// credential authority. It returns ErrNoIdentity-worthy conditions as an
// error or an empty string when no user is signed in.
type IdentityFunc func() (string, error)

// Logger defines the logging interface used by the Provider.
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

// Provider obtains and caches short-lived broker credentials from the
// credential authority, refreshing them before they expire.
//
// Concurrency: a refresh is serialized through a singleflight group, so
// concurrent callers during a refresh share the single in-flight exchange
// instead of each issuing their own. Exactly one network exchange happens
// per refresh.
//
// All public methods are thread-safe.
type Provider struct {
	endpoint string
	margin   time.Duration
	identity IdentityFunc

	httpClient *http.Client
	logger     Logger

	mu      sync.RWMutex
	current *Credential

	group singleflight.Group
}

// Option configures a Provider.
type Option func(*Provider)

// WithRefreshMargin overrides the default 5 minute refresh margin.
func WithRefreshMargin(margin time.Duration) Option {
	return func(p *Provider) {
		p.margin = margin
	}
}

// WithHTTPClient overrides the HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithLogger sets the logger for the provider.
func WithLogger(logger Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a credential provider.
//
// Parameters:
//   - endpoint: Role-assumption exchange URL of the credential authority
//   - identity: Supplies the authenticated caller identity
//   - opts: Optional overrides
func NewProvider(endpoint string, identity IdentityFunc, opts ...Option) *Provider {
	p := &Provider{
		endpoint: endpoint,
		margin:   defaultRefreshMargin,
		identity: identity,
		httpClient: &http.Client{
			Timeout: exchangeTimeout,
		},
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a credential that is guaranteed valid for at least the
// refresh margin. The cached credential is returned while still fresh;
// otherwise one exchange with the authority is performed and its result
// cached and shared with any concurrent callers.
//
// Returns:
//   - *Credential: Valid credential (never the stale one)
//   - error: ErrNoIdentity if no user identity is available,
//     ErrExchangeFailed if the authority exchange fails
func (p *Provider) Token(ctx context.Context) (*Credential, error) {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()

	if current.ValidFor(p.margin) {
		return current, nil
	}

	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		// Re-check under the flight: a caller that queued behind the
		// winning refresh finds the fresh credential here.
		p.mu.RLock()
		cached := p.current
		p.mu.RUnlock()
		if cached.ValidFor(p.margin) {
			return cached, nil
		}

		// The flight's result is shared with every queued caller, so the
		// exchange must not die with the winning caller's context. It
		// gets its own deadline instead.
		exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()

		cred, exchangeErr := p.exchange(exchangeCtx)
		if exchangeErr != nil {
			return nil, exchangeErr
		}

		p.mu.Lock()
		p.current = cred
		p.mu.Unlock()

		p.logger.Info("credential refreshed", "expires_at", cred.ExpiresAt)
		return cred, nil
	})
	if err != nil {
		return nil, err
	}

	cred, ok := v.(*Credential)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected refresh result", ErrExchangeFailed)
	}
	return cred, nil
}

// ExpiringSoon reports whether the cached credential is absent or inside
// the refresh margin.
func (p *Provider) ExpiringSoon() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.current.ValidFor(p.margin)
}

// Clear drops the cached credential. The next Token call performs a fresh
// exchange.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// exchangeRequest is the wire request to the credential authority.
type exchangeRequest struct {
	Identity string `json:"identity"`
}

// exchangeResponse is the wire response from the credential authority.
type exchangeResponse struct {
	Credentials struct {
		Token        string `json:"token"`
		TmpSecretID  string `json:"tmpSecretId"`
		TmpSecretKey string `json:"tmpSecretKey"`
	} `json:"credentials"`
	ExpiredTime int64  `json:"expiredTime"` // epoch seconds
	Expiration  string `json:"expiration"`  // ISO8601, informational
	RequestID   string `json:"requestId"`
}

// exchange performs one role-assumption round trip with the authority.
func (p *Provider) exchange(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	identity, err := p.identity()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoIdentity, err)
	}
	if identity == "" {
		return nil, ErrNoIdentity
	}

	body, err := json.Marshal(exchangeRequest{Identity: identity})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %w", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: authority returned status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var wire exchangeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrExchangeFailed, err)
	}

	if wire.Credentials.Token == "" || wire.ExpiredTime == 0 {
		return nil, fmt.Errorf("%w: incomplete credential in response %s", ErrExchangeFailed, wire.RequestID)
	}

	return &Credential{
		Token:        wire.Credentials.Token,
		TmpSecretID:  wire.Credentials.TmpSecretID,
		TmpSecretKey: wire.Credentials.TmpSecretKey,
		ExpiresAt:    time.Unix(wire.ExpiredTime, 0),
	}, nil
}
